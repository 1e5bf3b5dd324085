package facematch

import "github.com/kozaktomas/face-attendance/internal/database"

// Flatten lists every stored sample, one entry per embedding.
// Identities are enumerated by ascending id and each identity's samples in
// insertion order; the matcher's tie-break relies on this order.
func Flatten(identities map[string]*database.Identity) []Sample {
	var samples []Sample
	for _, id := range database.SortedIDs(identities) {
		for pos, emb := range identities[id].Embeddings {
			samples = append(samples, Sample{OwnerID: id, Position: pos, Embedding: emb})
		}
	}
	return samples
}

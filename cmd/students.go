package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "Manage enrolled students",
}

var studentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled students",
	Args:  cobra.NoArgs,
	RunE:  runStudentsList,
}

var studentsEnrollCmd = &cobra.Command{
	Use:   "enroll <student-id> <photo>",
	Short: "Enroll a student from a single-face photo",
	Long: `Enroll a student from a photo showing exactly one face.
Enrolling an existing student again adds another reference sample and
updates the name and group.

Example:
  face-attendance students enroll A001 ana.jpg --name "Ana López" --group 3B`,
	Args: cobra.ExactArgs(2),
	RunE: runStudentsEnroll,
}

var studentsEnrollDirCmd = &cobra.Command{
	Use:   "enroll-dir <directory>",
	Short: "Enroll every student found in a directory",
	Long: `Enroll students in bulk. Every subdirectory of <directory> is one student,
named "<student-id>_<name>" (or just "<student-id>"). Each photo inside it
(jpg, jpeg, png, bmp, webp) is enrolled as one reference sample.

Example:
  face-attendance students enroll-dir ./class-3b --group 3B --workers 8`,
	Args: cobra.ExactArgs(1),
	RunE: runStudentsEnrollDir,
}

var studentsDeleteCmd = &cobra.Command{
	Use:   "delete <student-id>",
	Short: "Delete a student and their reference photos",
	Args:  cobra.ExactArgs(1),
	RunE:  runStudentsDelete,
}

func init() {
	rootCmd.AddCommand(studentsCmd)
	studentsCmd.AddCommand(studentsListCmd, studentsEnrollCmd, studentsEnrollDirCmd, studentsDeleteCmd)

	studentsListCmd.Flags().Bool("json", false, "Output as JSON")

	studentsEnrollCmd.Flags().String("name", "", "Student name (required)")
	studentsEnrollCmd.Flags().String("group", "", "Group (default General)")
	studentsEnrollCmd.MarkFlagRequired("name")

	studentsEnrollDirCmd.Flags().String("group", "", "Group assigned to every student (default General)")
	studentsEnrollDirCmd.Flags().Int("workers", constants.WorkerPoolSize, "Number of parallel enrollments")
}

func runStudentsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, err := openServices(ctx, config.Load(), false)
	if err != nil {
		return err
	}
	defer closeServices()

	list, err := svc.enrollment.List(ctx)
	if err != nil {
		return fmt.Errorf("listing students: %w", err)
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	if len(list) == 0 {
		fmt.Println("No students enrolled")
		return nil
	}
	rows := make([][]string, len(list))
	for i, s := range list {
		rows[i] = []string{s.ID, s.Name, s.Group, strconv.Itoa(s.Samples)}
	}
	fmt.Println(renderTable([]string{"ID", "Name", "Group", "Samples"}, rows, 4))
	fmt.Printf("%d students\n", len(list))
	return nil
}

func runStudentsEnroll(cmd *cobra.Command, args []string) error {
	id, photoPath := args[0], args[1]

	data, err := os.ReadFile(photoPath)
	if err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}

	ctx := context.Background()
	svc, err := openServices(ctx, config.Load(), false)
	if err != nil {
		return err
	}
	defer closeServices()

	ident, err := svc.enrollment.Enroll(ctx, attendance.EnrollRequest{
		ID:       id,
		Name:     mustGetString(cmd, "name"),
		Group:    mustGetString(cmd, "group"),
		Filename: filepath.Base(photoPath),
		Photo:    data,
	})
	if err != nil {
		return fmt.Errorf("enrolling %s: %w", id, err)
	}

	fmt.Printf("Enrolled %s (%s, group %s) with %d samples\n", ident.ID, ident.Name, ident.Group, len(ident.Embeddings))
	return nil
}

// enrollJob is one photo of one student found by enroll-dir.
type enrollJob struct {
	id    string
	name  string
	photo string
}

// parseStudentDir splits a "<id>_<name>" directory name.
func parseStudentDir(dirName string) (id, name string) {
	id, name, found := strings.Cut(dirName, "_")
	if !found {
		return dirName, dirName
	}
	if strings.TrimSpace(name) == "" {
		return id, id
	}
	return id, strings.ReplaceAll(name, "_", " ")
}

// collectEnrollJobs walks the student directories below root.
func collectEnrollJobs(root string) ([]enrollJob, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}

	var jobs []enrollJob
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		id, name := parseStudentDir(entry.Name())
		dir := filepath.Join(root, entry.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", dir, err)
		}
		for _, f := range files {
			if f.IsDir() || !constants.PhotoExtensions[strings.ToLower(filepath.Ext(f.Name()))] {
				continue
			}
			jobs = append(jobs, enrollJob{id: id, name: name, photo: filepath.Join(dir, f.Name())})
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].photo < jobs[j].photo })
	return jobs, nil
}

func runStudentsEnrollDir(cmd *cobra.Command, args []string) error {
	group := mustGetString(cmd, "group")
	workers := max(mustGetInt(cmd, "workers"), 1)

	jobs, err := collectEnrollJobs(args[0])
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No photos found")
		return nil
	}

	ctx := context.Background()
	svc, err := openServices(ctx, config.Load(), false)
	if err != nil {
		return err
	}
	defer closeServices()

	bar := progressbar.NewOptions(len(jobs),
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var (
		mu       sync.Mutex
		failures []string
		enrolled = make(map[string]bool)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, job := range jobs {
		g.Go(func() error {
			defer bar.Add(1)

			data, err := os.ReadFile(job.photo)
			if err == nil {
				_, err = svc.enrollment.Enroll(gctx, attendance.EnrollRequest{
					ID:       job.id,
					Name:     job.name,
					Group:    group,
					Filename: filepath.Base(job.photo),
					Photo:    data,
				})
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Rejected photos are reported, storage failures stop the run.
				failures = append(failures, fmt.Sprintf("%s: %v", job.photo, err))
				if kind := attendance.KindOf(err); kind == attendance.KindStorage {
					return err
				}
				return nil
			}
			enrolled[job.id] = true
			return nil
		})
	}
	runErr := g.Wait()
	fmt.Println()

	fmt.Printf("Enrolled %d students from %d photos\n", len(enrolled), len(jobs)-len(failures))
	if len(failures) > 0 {
		fmt.Printf("%d photos failed:\n", len(failures))
		for _, f := range failures {
			fmt.Printf("  %s\n", f)
		}
	}
	if runErr != nil {
		return fmt.Errorf("enrollment aborted: %w", runErr)
	}
	return nil
}

func runStudentsDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, err := openServices(ctx, config.Load(), false)
	if err != nil {
		return err
	}
	defer closeServices()

	ident, err := svc.enrollment.Remove(ctx, args[0])
	if err != nil {
		return fmt.Errorf("deleting %s: %w", args[0], err)
	}
	fmt.Printf("Deleted %s (%s)\n", ident.ID, ident.Name)
	return nil
}

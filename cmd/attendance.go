package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/workbook"
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Record and inspect attendance",
}

var attendanceRecognizeCmd = &cobra.Command{
	Use:   "recognize <photo>",
	Short: "Register attendance from a group photo",
	Long: `Detect every face in a group photo, match them against the enrolled
students and register the recognized ones in today's ledger of the group.

Example:
  face-attendance attendance recognize class.jpg --group 3B --tolerance 0.45`,
	Args: cobra.ExactArgs(1),
	RunE: runAttendanceRecognize,
}

var attendanceTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's attendance of a group",
	Args:  cobra.NoArgs,
	RunE:  runAttendanceToday,
}

var attendanceExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write today's attendance of a group as a workbook",
	Long: `Write today's ledger of a group to an .xlsx workbook. The file name
defaults to the ledger name, for example Asistencia_3B_2024-03-05.xlsx.`,
	Args: cobra.NoArgs,
	RunE: runAttendanceExport,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceRecognizeCmd, attendanceTodayCmd, attendanceExportCmd)

	attendanceRecognizeCmd.Flags().String("group", "", "Group whose ledger is updated (default General)")
	attendanceRecognizeCmd.Flags().Float64("tolerance", 0, "Maximum match distance (default MATCH_TOLERANCE or 0.5)")
	attendanceRecognizeCmd.Flags().Bool("json", false, "Output as JSON")

	attendanceTodayCmd.Flags().String("group", "", "Group (default General)")
	attendanceTodayCmd.Flags().Bool("json", false, "Output as JSON")

	attendanceExportCmd.Flags().String("group", "", "Group (default General)")
	attendanceExportCmd.Flags().StringP("output", "o", "", "Output file (default ledger file name)")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runAttendanceRecognize(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}

	cfg := config.Load()
	tolerance := cfg.Recognition.Tolerance
	if cmd.Flags().Changed("tolerance") {
		tolerance = mustGetFloat64(cmd, "tolerance")
	}

	ctx := context.Background()
	svc, err := openServices(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer closeServices()

	res, err := svc.pipeline.Recognize(ctx, mustGetString(cmd, "group"), tolerance, data)
	if err != nil {
		return fmt.Errorf("recognizing attendance: %w", err)
	}

	if mustGetBool(cmd, "json") {
		return printJSON(res)
	}

	rows := make([][]string, len(res.Recognized))
	for i, o := range res.Recognized {
		status := "registered"
		if o.AlreadyRegistered {
			status = "already registered"
		}
		rows[i] = []string{o.ID, o.Name, o.Group, strconv.FormatFloat(o.Confidence, 'f', 1, 64), status}
	}
	if len(rows) > 0 {
		fmt.Println(renderTable([]string{"ID", "Name", "Group", "Confidence", "Status"}, rows, 4))
	}
	fmt.Printf("%d faces, %d recognized, %d unknown (ledger %s)\n",
		res.TotalFaces, len(res.Recognized), res.UnknownCount, res.LedgerFile)
	return nil
}

func runAttendanceToday(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, err := openServices(ctx, config.Load(), false)
	if err != nil {
		return err
	}
	defer closeServices()

	today, err := svc.pipeline.Today(ctx, mustGetString(cmd, "group"))
	if err != nil {
		return fmt.Errorf("reading attendance: %w", err)
	}

	if mustGetBool(cmd, "json") {
		return printJSON(today)
	}

	if today.Total == 0 {
		fmt.Printf("No attendance recorded for %s on %s\n", today.Group, today.Date)
		return nil
	}
	rows := make([][]string, len(today.Records))
	for i, r := range today.Records {
		rows[i] = []string{strconv.Itoa(r.Seq), r.IdentityID, r.Name, r.Group, r.Time}
	}
	fmt.Println(renderTable([]string{"#", "ID", "Name", "Group", "Time"}, rows, 1))
	fmt.Printf("%s, %s: %d present\n", today.Group, today.Date, today.Total)
	return nil
}

func runAttendanceExport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()
	svc, err := openServices(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer closeServices()

	group := mustGetString(cmd, "group")
	exists, err := svc.pipeline.LedgerExists(ctx, group)
	if err != nil {
		return fmt.Errorf("checking ledger: %w", err)
	}
	if !exists {
		return fmt.Errorf("no attendance recorded today")
	}

	today, err := svc.pipeline.Today(ctx, group)
	if err != nil {
		return fmt.Errorf("reading attendance: %w", err)
	}
	now := svc.pipeline.Now()
	data, err := workbook.Render(cfg.Layout, today.Group, now, today.Records)
	if err != nil {
		return fmt.Errorf("rendering workbook: %w", err)
	}

	out := mustGetString(cmd, "output")
	if out == "" {
		out = database.LedgerFileName(today.Group, now)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	fmt.Printf("Wrote %d records to %s\n", today.Total, out)
	return nil
}

package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/askql-systems/askql/pkg/types"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(serverURL, args[0])
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:3000", "askql server base URL")
	return cmd
}

// jobStatus mirrors the server's job view.
type jobStatus struct {
	ID           string           `json:"id"`
	Type         string           `json:"type"`
	Status       types.JobStatus  `json:"status"`
	CreatedAt    time.Time        `json:"createdAt"`
	StartedAt    *time.Time       `json:"startedAt"`
	FinishedAt   *time.Time       `json:"finishedAt"`
	Error        string           `json:"error"`
	Deduplicated bool             `json:"deduplicated"`
	Result       *types.JobResult `json:"result"`
}

func fetchJob(serverURL, jobID string) (*jobStatus, error) {
	resp, err := http.Get(serverURL + "/api/jobs/" + jobID)
	if err != nil {
		return nil, fmt.Errorf("fetching job: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var job jobStatus
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("decoding job: %w", err)
	}
	return &job, nil
}

func runStatus(serverURL, jobID string) error {
	job, err := fetchJob(serverURL, jobID)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	_, _ = bold.Printf("Job: %s\n", job.ID)
	fmt.Printf("  Type:    %s\n", job.Type)

	statusStr := string(job.Status)
	switch job.Status {
	case types.JobCompleted:
		statusStr = color.GreenString(statusStr)
	case types.JobFailed:
		statusStr = color.RedString(statusStr)
	case types.JobProcessing:
		statusStr = color.CyanString(statusStr)
	default:
		statusStr = color.YellowString(statusStr)
	}
	fmt.Printf("  Status:  %s\n", statusStr)
	fmt.Printf("  Created: %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.StartedAt != nil {
		fmt.Printf("  Started: %s\n", job.StartedAt.Format(time.RFC3339))
	}
	if job.FinishedAt != nil {
		fmt.Printf("  Finished: %s\n", job.FinishedAt.Format(time.RFC3339))
	}
	if job.Deduplicated {
		color.Cyan("  Deduplicated: served from an earlier equivalent question")
	}
	if job.Error != "" {
		color.Red("  Error: %s", job.Error)
	}
	if job.Result != nil && job.Result.Result != nil {
		fmt.Printf("  Rows:    %d\n", len(job.Result.Result.Rows))
	}
	return nil
}

package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/askql-systems/askql/pkg/types"
)

// NewAskCmd creates the ask command.
func NewAskCmd() *cobra.Command {
	var serverURL string
	var wait bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question against a running askql server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(serverURL, args[0], wait)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:3000", "askql server base URL")
	cmd.Flags().BoolVar(&wait, "wait", true, "wait for the job to finish")
	return cmd
}

type askResult struct {
	QuestionID   string          `json:"questionId"`
	JobID        string          `json:"jobId"`
	Status       types.JobStatus `json:"status"`
	Deduplicated bool            `json:"deduplicated"`
}

func runAsk(serverURL, question string, wait bool) error {
	body, err := json.Marshal(map[string]string{"prompt": question})
	if err != nil {
		return err
	}

	resp, err := http.Post(serverURL+"/api/questions", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("asking question: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		var errBody map[string]string
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return fmt.Errorf("server rejected question: %s (%d)", errBody["error"], resp.StatusCode)
	}

	var result askResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if result.Deduplicated {
		color.Cyan("Matched an earlier question (job %s)", result.JobID)
	} else {
		fmt.Printf("Question accepted (job %s)\n", result.JobID)
	}

	if !wait {
		fmt.Printf("question: %s\njob:      %s\nstatus:   %s\n", result.QuestionID, result.JobID, result.Status)
		return nil
	}

	return pollJob(serverURL, result.JobID, 2*time.Minute)
}

func pollJob(serverURL, jobID string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		job, err := fetchJob(serverURL, jobID)
		if err != nil {
			return err
		}

		switch job.Status {
		case types.JobCompleted:
			printJobResult(job)
			return nil
		case types.JobFailed:
			color.Red("Job failed: %s", job.Error)
			return fmt.Errorf("job %s failed", jobID)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for job %s", jobID)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func printJobResult(job *jobStatus) {
	color.Green("Job completed")
	if job.Result == nil || job.Result.Result == nil {
		return
	}
	out, err := json.MarshalIndent(job.Result.Result.Rows, "", "  ")
	if err != nil {
		return
	}
	fmt.Println(string(out))
	if len(job.Result.ChartConfig) > 0 {
		chart, _ := json.Marshal(job.Result.ChartConfig)
		color.Cyan("chart: %s", chart)
	}
}

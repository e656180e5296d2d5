// ABOUTME: Operator CLI for coven-directory inspection
// ABOUTME: Shows health, agents, search rankings, team tasks, and traces

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

type Agent struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	EmbeddingState string `json:"embedding_state"`
	UpdatedAt      string `json:"updated_at"`
}

type SearchHit struct {
	Agent         Agent   `json:"agent"`
	Score         float64 `json:"score"`
	LexicalScore  float64 `json:"lexical_score"`
	SemanticScore float64 `json:"semantic_score"`
}

type SearchResponse struct {
	Results  []SearchHit `json:"results"`
	Degraded bool        `json:"degraded"`
}

type Task struct {
	ID        string   `json:"id"`
	Subject   string   `json:"subject"`
	Status    string   `json:"status"`
	OwnerName string   `json:"owner_name"`
	BlockedBy []string `json:"blocked_by"`
	Priority  int      `json:"priority"`
}

type Trace struct {
	ID            string `json:"id"`
	ParentTraceID string `json:"parent_trace_id"`
	Payload       string `json:"payload"`
	CreatedAt     string `json:"created_at"`
}

func main() {
	directory := flag.String("directory", getEnv("COVEN_DIRECTORY_HTTP", "http://localhost:8420"), "Directory HTTP URL")
	flag.Parse()

	baseURL := strings.TrimSuffix(*directory, "/")

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	var err error
	switch args[0] {
	case "health":
		err = printHealth(baseURL)
	case "agents":
		err = printAgents(baseURL)
	case "search":
		if len(args) < 2 {
			err = fmt.Errorf("usage: coven-dirctl search <query>")
		} else {
			err = printSearch(baseURL, strings.Join(args[1:], " "))
		}
	case "tasks":
		if len(args) < 2 {
			err = fmt.Errorf("usage: coven-dirctl tasks <team-id>")
		} else {
			err = printTasks(baseURL, args[1])
		}
	case "trace":
		if len(args) < 2 {
			err = fmt.Errorf("usage: coven-dirctl trace <trace-id>")
		} else {
			err = printTrace(baseURL, args[1])
		}
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: coven-dirctl [-directory URL] <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  health            Check directory health")
	fmt.Println("  agents            List agent records")
	fmt.Println("  search <query>    Run a hybrid search")
	fmt.Println("  tasks <team-id>   Show a team's task graph")
	fmt.Println("  trace <trace-id>  Show a trace with its ancestors and children")
}

func getJSON(baseURL, path string, out any) error {
	resp, err := http.Get(baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
			return fmt.Errorf("%s (status %d)", body.Error, resp.StatusCode)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health/ready")
	if err != nil {
		return fmt.Errorf("directory unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		color.Green("healthy")
		return nil
	}
	color.Red("not ready (status %d)", resp.StatusCode)
	return nil
}

func printAgents(baseURL string) error {
	var agents []Agent
	if err := getJSON(baseURL, "/api/agents", &agents); err != nil {
		return err
	}

	if len(agents) == 0 {
		fmt.Println("(no agents)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMBEDDING\tUPDATED")
	fmt.Fprintln(w, "--\t----\t---------\t-------")
	for _, a := range agents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", truncate(a.ID, 24), a.Name, a.EmbeddingState, formatTime(a.UpdatedAt))
	}
	return w.Flush()
}

func printSearch(baseURL, query string) error {
	var result SearchResponse
	path := "/api/search?q=" + url.QueryEscape(query)
	if err := getJSON(baseURL, path, &result); err != nil {
		return err
	}

	if result.Degraded {
		color.Yellow("degraded: lexical-only ranking (embedding provider unavailable)")
	}
	if len(result.Results) == 0 {
		fmt.Println("(no matches)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tLEX\tSEM\tID\tNAME")
	fmt.Fprintln(w, "-----\t---\t---\t--\t----")
	for _, hit := range result.Results {
		fmt.Fprintf(w, "%.3f\t%.3f\t%.3f\t%s\t%s\n",
			hit.Score, hit.LexicalScore, hit.SemanticScore, truncate(hit.Agent.ID, 24), hit.Agent.Name)
	}
	return w.Flush()
}

func printTasks(baseURL, teamID string) error {
	var tasks []Task
	if err := getJSON(baseURL, "/api/teams/"+url.PathEscape(teamID)+"/tasks", &tasks); err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("(no tasks)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSUBJECT\tSTATUS\tOWNER\tPRI\tBLOCKED BY")
	fmt.Fprintln(w, "--\t-------\t------\t-----\t---\t----------")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			truncate(t.ID, 12), truncate(t.Subject, 32), colorStatus(t.Status),
			t.OwnerName, t.Priority, strings.Join(t.BlockedBy, ","))
	}
	return w.Flush()
}

func printTrace(baseURL, traceID string) error {
	var root Trace
	if err := getJSON(baseURL, "/api/traces/"+url.PathEscape(traceID), &root); err != nil {
		return err
	}

	var ancestors []Trace
	if err := getJSON(baseURL, "/api/traces/"+url.PathEscape(traceID)+"/ancestors", &ancestors); err != nil {
		return err
	}
	var children []Trace
	if err := getJSON(baseURL, "/api/traces/"+url.PathEscape(traceID)+"/children", &children); err != nil {
		return err
	}

	// Print root-first lineage ending at the requested trace.
	for i := len(ancestors) - 1; i >= 0; i-- {
		fmt.Printf("%s%s\n", strings.Repeat("  ", len(ancestors)-1-i), ancestors[i].ID)
	}
	depth := len(ancestors)
	color.Cyan("%s%s  (%s)", strings.Repeat("  ", depth), root.ID, formatTime(root.CreatedAt))
	for _, c := range children {
		fmt.Printf("%s%s\n", strings.Repeat("  ", depth+1), c.ID)
	}
	return nil
}

func colorStatus(status string) string {
	switch status {
	case "completed":
		return color.GreenString(status)
	case "blocked":
		return color.RedString(status)
	case "in_progress":
		return color.CyanString(status)
	default:
		return status
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func formatTime(raw string) string {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.Format("Jan 02 15:04")
	}
	return raw
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

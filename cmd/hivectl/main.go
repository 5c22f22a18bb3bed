package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

type apiClient struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) do(method, path string, body any, out any) error {
	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		buf = bytes.NewBuffer(data)
	} else {
		buf = &bytes.Buffer{}
	}

	req, err := http.NewRequest(method, c.baseURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func parseArgs(args []string) map[string]string {
	result := make(map[string]string)
	for i := 0; i < len(args); i++ {
		if len(args[i]) > 2 && args[i][:2] == "--" && i+1 < len(args) {
			result[args[i][2:]] = args[i+1]
			i++
		}
	}
	return result
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, `  hivectl submit --type "..." [--description "..."] [--priority N] [--swarm ID] [--capabilities a,b]`)
	fmt.Fprintln(os.Stderr, "  hivectl tasks [--swarm ID] [--status pending]")
	fmt.Fprintln(os.Stderr, `  hivectl task --id "..."`)
	fmt.Fprintln(os.Stderr, "  hivectl agents [--swarm ID]")
	fmt.Fprintln(os.Stderr, "  hivectl swarms")
	fmt.Fprintln(os.Stderr, "  hivectl status")
	os.Exit(1)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

type taskView struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	Status         string   `json:"status"`
	Priority       int      `json:"priority"`
	SwarmID        string   `json:"swarm_id"`
	AssignedAgents []string `json:"assigned_agents"`
	Error          string   `json:"error"`
	Progress       int      `json:"progress"`
}

type agentView struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	SwarmID        string `json:"swarm_id"`
	CurrentTaskID  string `json:"current_task_id"`
	TasksCompleted int    `json:"tasks_completed"`
}

type swarmView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	AgentCount int    `json:"agent_count"`
}

func main() {
	baseURL := os.Getenv("HIVE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	client := newClient(baseURL)

	if len(os.Args) < 2 {
		usage()
	}

	command := os.Args[1]
	rest := os.Args[2:]

	switch command {
	case "submit":
		args := parseArgs(rest)
		if args["type"] == "" {
			fatal("--type is required")
		}
		spec := map[string]any{
			"type":        args["type"],
			"description": args["description"],
		}
		if args["priority"] != "" {
			p, err := strconv.Atoi(args["priority"])
			if err != nil {
				fatal("invalid priority: %s", args["priority"])
			}
			spec["priority"] = p
		}
		if args["swarm"] != "" {
			spec["swarm_id"] = args["swarm"]
		}
		if args["capabilities"] != "" {
			spec["required_capabilities"] = strings.Split(args["capabilities"], ",")
		}
		var created taskView
		if err := client.do("POST", "/api/tasks", spec, &created); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Task submitted: %s [%s]\n", created.ID, created.Status)

	case "tasks":
		args := parseArgs(rest)
		path := "/api/tasks"
		q := []string{}
		if args["swarm"] != "" {
			q = append(q, "swarm="+args["swarm"])
		}
		if args["status"] != "" {
			q = append(q, "status="+args["status"])
		}
		if len(q) > 0 {
			path += "?" + strings.Join(q, "&")
		}
		var tasks []taskView
		if err := client.do("GET", path, nil, &tasks); err != nil {
			fatal("%v", err)
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks found.")
			return
		}
		for _, t := range tasks {
			agents := strings.Join(t.AssignedAgents, ",")
			if agents == "" {
				agents = "-"
			}
			fmt.Printf("  %s  %-10s p%d  %s  agents=%s\n", t.ID, t.Status, t.Priority, t.Type, agents)
		}

	case "task":
		args := parseArgs(rest)
		if args["id"] == "" {
			fatal("--id is required")
		}
		var t taskView
		if err := client.do("GET", "/api/tasks/"+args["id"], nil, &t); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("ID:       %s\nType:     %s\nStatus:   %s\nPriority: %d\nProgress: %d%%\n", t.ID, t.Type, t.Status, t.Priority, t.Progress)
		if t.SwarmID != "" {
			fmt.Printf("Swarm:    %s\n", t.SwarmID)
		}
		if len(t.AssignedAgents) > 0 {
			fmt.Printf("Agents:   %s\n", strings.Join(t.AssignedAgents, ", "))
		}
		if t.Error != "" {
			fmt.Printf("Error:    %s\n", t.Error)
		}

	case "agents":
		args := parseArgs(rest)
		path := "/api/agents"
		if args["swarm"] != "" {
			path += "?swarm=" + args["swarm"]
		}
		var agents []agentView
		if err := client.do("GET", path, nil, &agents); err != nil {
			fatal("%v", err)
		}
		if len(agents) == 0 {
			fmt.Println("No agents registered.")
			return
		}
		for _, a := range agents {
			fmt.Printf("  %s  %-6s %s  completed=%d\n", a.ID, a.Status, a.Name, a.TasksCompleted)
		}

	case "swarms":
		var swarms []swarmView
		if err := client.do("GET", "/api/swarms", nil, &swarms); err != nil {
			fatal("%v", err)
		}
		if len(swarms) == 0 {
			fmt.Println("No swarms.")
			return
		}
		for _, s := range swarms {
			fmt.Printf("  %s  %-12s %s  agents=%d\n", s.ID, s.Status, s.Name, s.AgentCount)
		}

	case "status":
		var status map[string]any
		if err := client.do("GET", "/api/status", nil, &status); err != nil {
			fatal("%v", err)
		}
		data, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(data))

	default:
		fatal("unknown command: %s", command)
	}
}

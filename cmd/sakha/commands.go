package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kalambet/sakha/internal/agent"
	"github.com/kalambet/sakha/internal/api"
	"github.com/kalambet/sakha/internal/config"
	"github.com/kalambet/sakha/internal/scripture"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send a message to Krishna",
	Long: `Send a message to Krishna and print the reply.

Examples:
  sakha ask "I feel lost about my career"
  sakha ask --session 3f2c... "tell me more"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, _ := cmd.Flags().GetString("session")
		message := strings.TrimSpace(strings.Join(args, " "))
		if message == "" {
			return fmt.Errorf("message is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var reply agent.Response
		if err := client.call(cmd.Context(), http.MethodPost, "/ask", api.AskRequest{SessionID: session, Message: message}, &reply); err != nil {
			return err
		}

		printSpeaker("Krishna", reply.Response)
		if reply.ScriptureSource != "" {
			if reply.ScripturePage > 0 {
				printNote("from %s, page %d", reply.ScriptureSource, reply.ScripturePage)
			} else {
				printNote("from %s", reply.ScriptureSource)
			}
		}
		printNote("session %s", reply.SessionID)
		return nil
	},
}

func init() {
	askCmd.Flags().String("session", "", "continue an existing session")
}

// --- sessions ---

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List conversations, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var sessions []api.SessionJSON
		if err := client.call(cmd.Context(), http.MethodGet, "/conversations", nil, &sessions); err != nil {
			return err
		}
		if len(sessions) == 0 {
			printNote("No conversations yet.")
			return nil
		}

		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tSTARTED\tLAST ACTIVE\tMESSAGES\tFIRST MESSAGE")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", s.SessionID, s.Timestamp, s.LastActive, s.MessageCount, truncate(s.FirstMessage, 50))
		}
		return w.Flush()
	},
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Show every message of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var msgs []api.MessageJSON
		if err := client.call(cmd.Context(), http.MethodGet, "/conversations/"+url.PathEscape(args[0])+"/messages", nil, &msgs); err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(msgs)
		}
		if len(msgs) == 0 {
			printNote("No messages in session %s.", args[0])
			return nil
		}
		for _, m := range msgs {
			name := "You"
			if m.Sender == "assistant" {
				name = "Krishna"
			}
			printNote("%s  %s", m.Timestamp, m.ID)
			printSpeaker(name, m.Content)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Bool("json", false, "print raw JSON")
}

// --- summarize ---

var summarizeCmd = &cobra.Command{
	Use:   "summarize <session-id>",
	Short: "Summarize a conversation and store the summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var result map[string]string
		if err := client.call(cmd.Context(), http.MethodPost, "/conversations/"+url.PathEscape(args[0])+"/summary", nil, &result); err != nil {
			return err
		}
		fmt.Fprintln(stdout, result["summary"])
		return nil
	},
}

// --- forget ---

var forgetCmd = &cobra.Command{
	Use:   "forget <session-id>",
	Short: "Permanently delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := client.call(cmd.Context(), http.MethodDelete, "/conversations/"+url.PathEscape(args[0]), nil, nil); err != nil {
			return err
		}
		printSuccess("Deleted conversation %s", args[0])
		return nil
	},
}

var forgetAllCmd = &cobra.Command{
	Use:   "forget-all",
	Short: "Permanently delete every conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete ALL conversations. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := client.call(cmd.Context(), http.MethodDelete, "/conversations", nil, nil); err != nil {
			return err
		}
		printSuccess("All conversations deleted")
		return nil
	},
}

func init() {
	forgetAllCmd.Flags().Bool("confirm", false, "confirm deletion")
}

var deleteMessageCmd = &cobra.Command{
	Use:   "delete-message <session-id> <message-id>",
	Short: "Delete a single message from a conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		path := "/conversations/" + url.PathEscape(args[0]) + "/messages/" + url.PathEscape(args[1])
		if err := client.call(cmd.Context(), http.MethodDelete, path, nil, nil); err != nil {
			return err
		}
		printSuccess("Deleted message %s", args[1])
		return nil
	},
}

// --- scriptures ---

var scripturesCmd = &cobra.Command{
	Use:   "scriptures [source] [page]",
	Short: "List loaded scriptures or print one page",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if len(args) == 2 {
			page, err := strconv.Atoi(args[1])
			if err != nil || page < 1 {
				return fmt.Errorf("page must be a positive integer, got %q", args[1])
			}
			var result struct {
				Content string `json:"content"`
			}
			if err := client.call(cmd.Context(), http.MethodGet, fmt.Sprintf("/scriptures/%s/pages/%d", url.PathEscape(args[0]), page), nil, &result); err != nil {
				return err
			}
			fmt.Fprintln(stdout, result.Content)
			return nil
		}

		var sources []scripture.SourceInfo
		if err := client.call(cmd.Context(), http.MethodGet, "/scriptures", nil, &sources); err != nil {
			return err
		}
		if len(args) == 1 {
			for _, s := range sources {
				if s.ID == args[0] {
					printStatus(s.Name, "%d pages", s.Pages)
					return nil
				}
			}
			return fmt.Errorf("scripture %q not loaded", args[0])
		}
		if len(sources) == 0 {
			printNote("No scriptures loaded.")
			return nil
		}

		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPAGES")
		for _, s := range sources {
			fmt.Fprintf(w, "%s\t%s\t%d\n", s.ID, s.Name, s.Pages)
		}
		return w.Flush()
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(stdout, "  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorDim, k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Secret keys are written to the platform secret store.\n\nKeys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s", key)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Restore a configuration value to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configUnsetCmd)
}

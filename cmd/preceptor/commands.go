package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/preceptor/internal/catalog"
	"github.com/kalambet/preceptor/internal/config"
)

// --- evaluate ---

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <student-id>",
	Short: "Generate and store a scored evaluation for a student",
	Long: `Generate and store a scored evaluation for a student.

Examples:
  preceptor evaluate s-1042 --case "laparoscopic cholecystectomy"
  preceptor evaluate s-1042 --case "total knee arthroplasty" --focus "instrument handling;counts" --comments "struggled with retraction"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caseType, _ := cmd.Flags().GetString("case")
		comments, _ := cmd.Flags().GetString("comments")
		focus, _ := cmd.Flags().GetString("focus")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/evaluations", map[string]string{
			"student_id":  args[0],
			"case_type":   caseType,
			"comments":    comments,
			"focus_areas": focus,
		})
		if err != nil {
			return err
		}

		var result struct {
			ID                string  `json:"id"`
			PerformanceLevel  string  `json:"performance_level"`
			CompetencyAvg     float64 `json:"competency_avg"`
			BehaviorAvg       float64 `json:"behavior_avg"`
			BehaviorUndefined bool    `json:"behavior_undefined"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Evaluation %s recorded", result.ID)
		printLevel("Level", result.PerformanceLevel)
		printStatus("Competency avg", "%.1f", result.CompetencyAvg)
		if result.BehaviorUndefined {
			printWarning("behavior average undefined (all scores were sentinels)")
		} else {
			printStatus("Behavior avg", "%.2f", result.BehaviorAvg)
		}
		return nil
	},
}

// --- assign ---

var assignCmd = &cobra.Command{
	Use:   "assign <student-id>",
	Short: "Match the next practice case and patient archetype for a student",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/assignments", map[string]string{"student_id": args[0]})
		if err != nil {
			return err
		}

		var result struct {
			Case struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			} `json:"case"`
			Patient struct {
				Name          string   `json:"name"`
				Categories    []string `json:"categories"`
				Comorbidities []string `json:"comorbidities"`
			} `json:"patient"`
			Rationale string `json:"rationale"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printStatus("Case", "%s", result.Case.Name)
		if result.Patient.Name != "" {
			printStatus("Patient", "%s", result.Patient.Name)
		}
		if len(result.Patient.Categories) > 0 {
			printStatus("Categories", "%s", strings.Join(result.Patient.Categories, ", "))
		}
		if len(result.Patient.Comorbidities) > 0 {
			printStatus("Comorbidities", "%s", strings.Join(result.Patient.Comorbidities, ", "))
		}
		printStatus("Rationale", "%s", result.Rationale)
		return nil
	},
}

// --- students ---

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "List the student roster",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/students")
		if err != nil {
			return err
		}

		var students []struct {
			ID            string `json:"ID"`
			Name          string `json:"Name"`
			ClassStanding int    `json:"ClassStanding"`
		}
		if err := decodeJSON(resp, &students); err != nil {
			return err
		}

		if len(students) == 0 {
			printWarning("no students in roster")
			return nil
		}
		for _, s := range students {
			printStatus(s.ID, "%s (class standing %d)", s.Name, s.ClassStanding)
		}
		return nil
	},
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history <student-id>",
	Short: "List a student's recent evaluations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/students/%s/evaluations?limit=%d", args[0], limit))
		if err != nil {
			return err
		}

		var records []struct {
			ID               string `json:"ID"`
			CaseType         string `json:"CaseType"`
			PerformanceLevel string `json:"PerformanceLevel"`
			CompletionDate   string `json:"CompletionDate"`
		}
		if err := decodeJSON(resp, &records); err != nil {
			return err
		}

		if len(records) == 0 {
			printWarning("no evaluations for %s", args[0])
			return nil
		}
		for _, r := range records {
			printStatus(r.CompletionDate, "%s — %s", r.CaseType, colorize(levelColor(r.PerformanceLevel), r.PerformanceLevel))
		}
		return nil
	},
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile <student-id>",
	Short: "Show a student's mined struggle profile as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/students/"+args[0]+"/profile")
		if err != nil {
			return err
		}

		var profile json.RawMessage
		if err := decodeJSON(resp, &profile); err != nil {
			return err
		}

		out, err := json.MarshalIndent(profile, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

// --- ground ---

var groundCmd = &cobra.Command{
	Use:   "ground <query>",
	Short: "Resolve reference passages for a query via the fallback chain",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		query := strings.Join(args, " ")
		resp, err := client.post(cmd.Context(), "/grounding/resolve", map[string]string{"query": query})
		if err != nil {
			return err
		}

		var result struct {
			Passages []struct {
				Source string `json:"source"`
				Title  string `json:"title"`
				Text   string `json:"text"`
			} `json:"passages"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		for _, p := range result.Passages {
			printStatus(p.Source, "%s", p.Title)
			fmt.Println(truncate(p.Text, 400))
		}
		return nil
	},
}

// --- ingest-bank ---

var ingestBankCmd = &cobra.Command{
	Use:   "ingest-bank <file.pdf>",
	Short: "Extract a PDF case bank into the grounding reference corpus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pages, err := catalog.ExtractCaseBank(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(pages) == 0 {
			printWarning("no extractable text in %s", args[0])
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		for _, page := range pages {
			resp, err := client.post(cmd.Context(), "/reference-docs", map[string]string{
				"title":   fmt.Sprintf("%s (page %d)", args[0], page.Page),
				"content": page.Text,
				"source":  "case-bank",
			})
			if err != nil {
				return err
			}
			var result map[string]string
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
		}

		printSuccess("Ingested %d pages from %s", len(pages), args[0])
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or set configuration values",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show all config keys and current values",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			printStatus(k.Key, "%s (env %s)", k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a config key to the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetKey(args[0], args[1]); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}
		printSuccess("Set %s = %s", args[0], args[1])
		return nil
	},
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

func init() {
	evaluateCmd.Flags().String("case", "", "case type the evaluation covers")
	evaluateCmd.Flags().String("comments", "", "free-form evaluator comments")
	evaluateCmd.Flags().String("focus", "", "semicolon-separated focus areas")
	historyCmd.Flags().Int("limit", 10, "maximum evaluations to list")
	configCmd.AddCommand(configShowCmd, configSetCmd)
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/synaptica-ai/clinical-insights/pkg/insights"
	"github.com/synaptica-ai/clinical-insights/pkg/nlp"
	"github.com/synaptica-ai/clinical-insights/pkg/training"
)

func trainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the model on a CSV dataset and write its artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			csvPath, _ := cmd.Flags().GetString("csv")
			target, _ := cmd.Flags().GetString("target")
			artifactDir, _ := cmd.Flags().GetString("artifact-dir")
			modelName, _ := cmd.Flags().GetString("model-name")

			f, err := os.Open(csvPath)
			if err != nil {
				return err
			}
			defer f.Close()
			ds, err := insights.ReadCSV(f)
			if err != nil {
				return err
			}

			svc, err := training.NewService(insights.NewAgent(insights.DefaultOptions()), nil, nil, artifactDir, modelName)
			if err != nil {
				return err
			}
			run, err := svc.Train(cmd.Context(), ds, target, training.SourceCSV)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"run_id":        run.ID.String(),
				"artifact_path": run.ArtifactPath,
				"accuracy":      run.Result.Accuracy,
				"features":      []string(run.Result.Features),
				"classes":       run.Result.Classes,
				"train_rows":    run.Result.TrainRows,
				"test_rows":     run.Result.TestRows,
			})
		},
	}
	cmd.Flags().String("csv", "", "path to the labelled CSV dataset")
	cmd.Flags().String("target", "complication", "target column name")
	cmd.Flags().String("artifact-dir", "./artifacts", "directory for model artifacts")
	cmd.Flags().String("model-name", "complication", "model name used for the latest artifact")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

func predictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Classify one patient record with a stored artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := agentFromFlags(cmd)
			if err != nil {
				return err
			}
			record, err := recordFromFlags(cmd)
			if err != nil {
				return err
			}
			result, err := agent.Predict(record)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"complication_predicted": result.PredictedLabel,
				"probabilities":          result.Probabilities,
			})
		},
	}
	addModelFlags(cmd)
	return cmd
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Extract entities, keywords and medical terms from a clinical note",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, _ := cmd.Flags().GetString("text")
			analysis, err := analyzeFromFlags(cmd, text)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), analysis)
		},
	}
	cmd.Flags().String("text", "", "note text to analyze")
	cmd.Flags().String("lexicon", "", "lexicon YAML file (defaults to the bundled lexicon)")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func insightCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insight",
		Short: "Print the insight summary for a record and its note",
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := agentFromFlags(cmd)
			if err != nil {
				return err
			}
			record, err := recordFromFlags(cmd)
			if err != nil {
				return err
			}
			text, _ := cmd.Flags().GetString("text")

			prediction, err := agent.Predict(record)
			if err != nil {
				return err
			}
			analysis, err := analyzeFromFlags(cmd, text)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), insights.Synthesize(prediction, analysis))
			return err
		},
	}
	addModelFlags(cmd)
	cmd.Flags().String("text", "", "note text to analyze")
	cmd.Flags().String("lexicon", "", "lexicon YAML file (defaults to the bundled lexicon)")
	return cmd
}

func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().String("artifact", "", "model artifact JSON written by train")
	cmd.Flags().String("record", "", "patient record as a JSON object, or @path to a JSON file")
	_ = cmd.MarkFlagRequired("artifact")
	_ = cmd.MarkFlagRequired("record")
}

func agentFromFlags(cmd *cobra.Command) (*insights.Agent, error) {
	path, _ := cmd.Flags().GetString("artifact")
	artifact, err := training.LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	agent := insights.NewAgent(insights.DefaultOptions())
	if err := agent.Restore(artifact.Model); err != nil {
		return nil, err
	}
	return agent, nil
}

func recordFromFlags(cmd *cobra.Command) (insights.PatientRecord, error) {
	raw, _ := cmd.Flags().GetString("record")
	payload := []byte(raw)
	if strings.HasPrefix(raw, "@") {
		var err error
		if payload, err = os.ReadFile(strings.TrimPrefix(raw, "@")); err != nil {
			return nil, err
		}
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("record must be a JSON object: %w", err)
	}
	if fields == nil {
		return nil, errors.New("record must be a JSON object")
	}
	return insights.ParsePatientRecord(fields)
}

func analyzeFromFlags(cmd *cobra.Command, text string) (nlp.NoteAnalysis, error) {
	path, _ := cmd.Flags().GetString("lexicon")
	var loader *nlp.Loader
	if path == "" {
		lex, err := nlp.BundledLexicon()
		if err != nil {
			return nlp.NoteAnalysis{}, err
		}
		loader = nlp.NewLoaderWithLexicon(lex)
	} else {
		loader = nlp.NewLoader(path, nil)
	}
	analyzer, err := nlp.NewAnalyzer(loader, 0)
	if err != nil {
		return nlp.NoteAnalysis{}, err
	}
	return analyzer.Analyze(cmd.Context(), text)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

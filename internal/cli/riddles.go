package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/redxsmoke/riddleofthedaydev/internal/app"
	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

// NewRiddlesCmd groups riddle pool maintenance commands.
func NewRiddlesCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "riddles",
		Short: "Manage the riddle pool",
	}
	cmd.AddCommand(newRiddlesImportCmd(configPath), newRiddlesListCmd(configPath))
	return cmd
}

type seedRiddle struct {
	Question  string `yaml:"question"`
	Answer    string `yaml:"answer"`
	Submitter string `yaml:"submitter"`
}

type importReport struct {
	Added      int
	Duplicates int
	Invalid    int
}

func newRiddlesImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Seed the pool from a YAML list of {question, answer, submitter}",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			seeds, err := parseSeedFile(f)
			if err != nil {
				return err
			}

			st, err := openStores(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()

			pool := app.NewRiddlePool(st.riddles)
			var report importReport
			for _, s := range seeds {
				_, err := pool.Submit(cmd.Context(), s.Question, s.Answer, s.Submitter)
				switch {
				case err == nil:
					report.Added++
				case errors.Is(err, domain.ErrDuplicateRiddle):
					report.Duplicates++
				case errors.Is(err, domain.ErrEmptyField):
					report.Invalid++
				default:
					return err
				}
			}
			log.Info().Int("added", report.Added).Int("duplicates", report.Duplicates).Int("invalid", report.Invalid).Msg("riddles imported")
			return nil
		},
	}
}

func newRiddlesListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the riddle pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			st, err := openStores(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()

			riddles, err := app.NewRiddlePool(st.riddles).List(cmd.Context())
			if err != nil {
				return err
			}
			return printRiddles(cmd.OutOrStdout(), riddles)
		},
	}
}

func parseSeedFile(r io.Reader) ([]seedRiddle, error) {
	var seeds []seedRiddle
	if err := yaml.NewDecoder(r).Decode(&seeds); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return seeds, nil
}

func printRiddles(w io.Writer, riddles []domain.Riddle) error {
	for _, r := range riddles {
		used := " "
		if r.Consumed {
			used = "x"
		}
		if _, err := fmt.Fprintf(w, "[%s] %4d  %s  (%s)\n", used, r.ID, r.Question, r.CreatedAt.Format(time.DateOnly)); err != nil {
			return err
		}
	}
	return nil
}

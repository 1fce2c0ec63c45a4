package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/papersim/internal/profile"
	"github.com/matsen/papersim/internal/reference"
)

func init() {
	rootCmd.AddCommand(interestsCmd)
	interestsCmd.AddCommand(interestsSearchCmd)
	interestsCmd.AddCommand(interestsPaperCmd)
	interestsCmd.AddCommand(interestsPDFCmd)
	interestsCmd.AddCommand(interestsAddCmd)
	interestsCmd.AddCommand(interestsShowCmd)
}

var interestsCmd = &cobra.Command{
	Use:   "interests",
	Short: "Update and inspect user interest profiles",
	Long: `Each user keeps a window of their five most recent interest terms.
Searches add every extracted keyword; paper views and PDF uploads add
their top three.`,
}

// InterestsResponse is the response for interest update commands.
type InterestsResponse struct {
	UserID    string   `json:"user_id"`
	Event     string   `json:"event"`
	Keywords  []string `json:"keywords,omitempty"`
	Interests string   `json:"interests"`
}

var interestsSearchCmd = &cobra.Command{
	Use:   "search <user> <query>",
	Short: "Record a search in a user's interests",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInterests(profile.EventSearch, args[0], func(ctx context.Context, svc *profile.Service, e *env, userID string) (*profile.Amplifier, error) {
			return svc.RecordSearch(ctx, userID, strings.Join(args[1:], " "))
		})
	},
}

var interestsPaperCmd = &cobra.Command{
	Use:   "paper <user> <paper-id>",
	Short: "Record a paper view in a user's interests",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInterests(profile.EventPaper, args[0], func(ctx context.Context, svc *profile.Service, e *env, userID string) (*profile.Amplifier, error) {
			p, err := e.db.GetPaper(ctx, args[1])
			if err != nil {
				return nil, err
			}
			return svc.RecordPaperView(ctx, userID, *p)
		})
	},
}

var interestsPDFCmd = &cobra.Command{
	Use:   "pdf <user> <file.pdf>",
	Short: "Record an uploaded PDF in a user's interests",
	Long: `Extract the text of a PDF and add its top three keywords to the user's
interests. max_pdf_pages in config.yml limits how many pages are read.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInterests(profile.EventPDF, args[0], func(ctx context.Context, svc *profile.Service, e *env, userID string) (*profile.Amplifier, error) {
			return svc.RecordPDF(ctx, userID, args[1], e.cfg.MaxPDFPages)
		})
	},
}

var interestsAddCmd = &cobra.Command{
	Use:   "add <user> <term>...",
	Short: "Append terms to a user's interests directly",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInterests(profile.EventDirect, args[0], func(ctx context.Context, svc *profile.Service, e *env, userID string) (*profile.Amplifier, error) {
			return nil, svc.AddInterests(ctx, userID, args[1:])
		})
	},
}

type interestsFunc func(ctx context.Context, svc *profile.Service, e *env, userID string) (*profile.Amplifier, error)

func runInterests(event, userKey string, fn interestsFunc) error {
	ctx := context.Background()
	e := mustSetup()
	defer e.close()

	u := e.mustResolveUser(ctx, userKey)

	a, err := fn(ctx, e.profiles(), e, u.ID)
	exitOnError(err, "updating interests")

	updated := e.mustResolveUser(ctx, u.ID)
	resp := InterestsResponse{
		UserID:    u.ID,
		Event:     event,
		Interests: updated.Interests,
	}
	if a != nil {
		resp.Keywords = a.Keywords
	}

	if humanOutput {
		if len(resp.Keywords) > 0 {
			fmt.Printf("Keywords: %s\n", strings.Join(resp.Keywords, ", "))
		}
		fmt.Printf("Interests: %s\n", resp.Interests)
	} else {
		outputJSON(resp)
	}
	return nil
}

// InterestsShowResponse is the response for interests show.
type InterestsShowResponse struct {
	UserID    string   `json:"user_id"`
	Interests []string `json:"interests"`
	Capacity  int      `json:"capacity"`
}

var interestsShowCmd = &cobra.Command{
	Use:   "show <user>",
	Short: "Show a user's interest window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := mustSetup()
		defer e.close()

		u := e.mustResolveUser(context.Background(), args[0])
		terms := u.InterestTerms()
		if terms == nil {
			terms = []string{}
		}

		if humanOutput {
			printUserHuman(*u)
		} else {
			outputJSON(InterestsShowResponse{
				UserID:    u.ID,
				Interests: terms,
				Capacity:  reference.MaxInterests,
			})
		}
		return nil
	},
}

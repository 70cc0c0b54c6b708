package cmd

import (
	"fmt"
	"os"
	"regexp"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tcheukueppo/WWW-Mechanize/internal/config"
	"github.com/tcheukueppo/WWW-Mechanize/internal/mech"
	"github.com/tcheukueppo/WWW-Mechanize/internal/observability"
)

var (
	outputFile   string
	linkURLRegex string
	followTexts  []string
)

func newSession() *mech.Session {
	return mech.NewSession(config.Get(), observability.GetLogger())
}

var getCmd = &cobra.Command{
	Use:   "get URL",
	Short: "Fetch a page and print its status, type and title.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newSession()
		if err := s.Get(cmd.Context(), args[0]); err != nil {
			return err
		}
		if !s.Success() {
			return fmt.Errorf("fetch of %q returned status %d", args[0], s.Status())
		}

		fmt.Printf("%d %s\n", s.Status(), s.URI())
		fmt.Printf("content-type: %s\n", s.ContentType())
		if title := s.Title(); title != "" {
			fmt.Printf("title: %s\n", title)
		}
		fmt.Printf("links: %d, forms: %d\n", len(s.Links()), len(s.Forms()))

		if outputFile != "" {
			if err := os.WriteFile(outputFile, s.Content(), 0o644); err != nil {
				return fmt.Errorf("failed to write %q: %w", outputFile, err)
			}
		}
		return nil
	},
}

var linksCmd = &cobra.Command{
	Use:   "links URL",
	Short: "Fetch a page and list its links in document order.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newSession()
		if err := s.Get(cmd.Context(), args[0]); err != nil {
			return err
		}

		var criteria mech.Criteria
		if linkURLRegex != "" {
			re, err := regexp.Compile(linkURLRegex)
			if err != nil {
				return fmt.Errorf("invalid --url-regex: %w", err)
			}
			criteria.URLRegex = re
		}

		for _, link := range s.FindAllLinks(criteria) {
			label := link.Text
			if !link.HasText() {
				label = "<" + string(link.Tag) + ">"
			}
			fmt.Printf("%s\t%s\n", link.URL, label)
		}
		return nil
	},
}

var formsCmd = &cobra.Command{
	Use:   "forms URL",
	Short: "Fetch a page and describe its forms and inputs.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newSession()
		if err := s.Get(cmd.Context(), args[0]); err != nil {
			return err
		}

		for i, form := range s.Forms() {
			name := form.Name
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Printf("form %d: %s %s %s\n", i+1, name, form.Method, form.Action)
			for _, in := range form.Inputs {
				if in.IsChoice() {
					fmt.Printf("  %s %q = %q (possible: %v)\n", in.Kind, in.Name, in.Value, in.Options)
				} else {
					fmt.Printf("  %s %q = %q\n", in.Kind, in.Name, in.Value)
				}
			}
		}
		return nil
	},
}

var followCmd = &cobra.Command{
	Use:   "follow URL",
	Short: "Fetch a page, then follow links by text, printing each hop.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		s := newSession()
		if err := s.Get(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("%d %s\n", s.Status(), s.URI())

		for _, text := range followTexts {
			if err := s.FollowLink(cmd.Context(), mech.WithText(text)); err != nil {
				logger.Warn("Stopping follow chain", zap.String("text", text), zap.Error(err))
				break
			}
			fmt.Printf("%d %s\n", s.Status(), s.URI())
		}
		return nil
	},
}

func init() {
	getCmd.Flags().StringVarP(&outputFile, "output", "o", "", "write the page body to a file")
	linksCmd.Flags().StringVar(&linkURLRegex, "url-regex", "", "only list links whose URL matches this pattern")
	followCmd.Flags().StringArrayVar(&followTexts, "text", nil, "link text to follow, repeatable, applied in order")
}

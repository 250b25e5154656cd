// ABOUTME: vistly-admin command tree
// ABOUTME: Read-mostly views over users, catalog entities and watch lists, plus session reset

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vistly/vistly-bot/internal/store"
)

func newRootCommand(cc *commandContext) *cobra.Command {
	root := &cobra.Command{
		Use:           "vistly-admin",
		Short:         "Inspect and repair a vistly-bot database",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&cc.configFlag, "config", "c", "", "Configuration file path")

	root.AddCommand(newUsersCommand(cc))
	root.AddCommand(newStatsCommand(cc))
	root.AddCommand(newEntityCommand(cc))
	root.AddCommand(newSearchCommand(cc))
	root.AddCommand(newListCommand(cc))
	root.AddCommand(newSessionCommand(cc))
	return root
}

func newUsersCommand(cc *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users by most recent activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withStore(cmd.Context(), func(s store.Store) error {
				users, err := s.ListUsers(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("listing users: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(users) == 0 {
					fmt.Fprintln(out, "No users yet.")
					return nil
				}
				rows := make([][]string, 0, len(users))
				for _, u := range users {
					rows = append(rows, []string{
						strconv.FormatInt(u.ID, 10),
						u.Frontend,
						u.ExternalID,
						u.DisplayName(),
						orDash(u.Language),
						humanize.Comma(int64(u.Entries)),
						since(u.LastActive),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Frontend", "External", "Name", "Lang", "Entries", "Last active"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum users to show")
	return cmd
}

func newStatsCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withStore(cmd.Context(), func(s store.Store) error {
				st, err := s.Stats(cmd.Context())
				if err != nil {
					return fmt.Errorf("reading stats: %w", err)
				}
				rows := [][]string{
					{"users", humanize.Comma(int64(st.Users))},
					{"entities", humanize.Comma(int64(st.Entities))},
					{"list entries", humanize.Comma(int64(st.Entries))},
				}
				for _, status := range store.Statuses {
					rows = append(rows, []string{"  " + string(status), humanize.Comma(int64(st.ByStatus[status]))})
				}
				rows = append(rows, []string{"sessions", humanize.Comma(int64(st.Sessions))})
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Counter", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newEntityCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "entity <id>",
		Short: "Show a catalog entity with its ratings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return cc.withStore(cmd.Context(), func(s store.Store) error {
				e, err := s.GetEntity(cmd.Context(), id)
				if store.IsNotFound(err) {
					return fmt.Errorf("entity %d not found", id)
				}
				if err != nil {
					return fmt.Errorf("getting entity: %w", err)
				}
				printEntity(cmd.OutOrStdout(), e)
				return nil
			})
		},
	}
}

func newSearchCommand(cc *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <title>",
		Short: "Find cached catalog entities by title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return cc.withStore(cmd.Context(), func(s store.Store) error {
				entities, err := s.SearchEntities(cmd.Context(), query, limit)
				if err != nil {
					return fmt.Errorf("searching entities: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(entities) == 0 {
					fmt.Fprintf(out, "Nothing cached matches %q.\n", query)
					return nil
				}
				rows := make([][]string, 0, len(entities))
				for _, e := range entities {
					rows = append(rows, []string{
						strconv.FormatInt(e.ID, 10),
						e.Title,
						string(e.Type),
						years(e),
						orDash(e.SourceID),
						orDash(e.KPID),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Type", "Years", "IMDb", "Kinopoisk"},
					rows,
					[]columnAlignment{alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entities to show")
	return cmd
}

func newListCommand(cc *commandContext) *cobra.Command {
	var (
		status string
		title  string
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:   "list <user-id>",
		Short: "Show a user's watch list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0])
			if err != nil {
				return err
			}
			filter := store.Status(status)
			if !filter.ValidFilter() {
				return fmt.Errorf("unknown status %q", status)
			}
			return cc.withStore(cmd.Context(), func(s store.Store) error {
				entries, total, err := s.QueryListEntries(cmd.Context(), store.ListQuery{
					UserID:      userID,
					TitleFilter: title,
					Status:      filter,
					Limit:       limit,
					Offset:      offset,
				})
				if err != nil {
					return fmt.Errorf("querying list: %w", err)
				}
				out := cmd.OutOrStdout()
				if total == 0 {
					fmt.Fprintln(out, "The list is empty.")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, le := range entries {
					name := ""
					if le.Entity != nil {
						name = le.Entity.Title
					}
					rows = append(rows, []string{
						strconv.FormatInt(le.ID, 10),
						name,
						string(le.Status),
						optionalInt(le.Rating),
						optionalInt(le.Season),
						since(le.UpdatedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Entry", "Title", "Status", "Rating", "Season", "Updated"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				color.New(color.FgHiBlack).Fprintf(out, "%d-%d of %s\n", offset+1, offset+len(entries), humanize.Comma(int64(total)))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", string(store.StatusAll), "Filter by status (all, planning, in_progress, completed)")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Filter by title substring")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "Entries to skip")
	return cmd
}

func newSessionCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage stored conversation sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset <frontend:conversation>",
		Short: "Drop a conversation's session so its next message starts fresh",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !strings.Contains(key, ":") {
				return fmt.Errorf("session key %q must look like frontend:conversation", key)
			}
			return cc.withStore(cmd.Context(), func(s store.Store) error {
				err := s.DeleteSession(cmd.Context(), key)
				if store.IsNotFound(err) {
					return fmt.Errorf("no session stored for %s", key)
				}
				if err != nil {
					return fmt.Errorf("deleting session: %w", err)
				}
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Session %s reset\n", key)
				return nil
			})
		},
	})
	return cmd
}

func printEntity(out io.Writer, e *store.Entity) {
	bold := color.New(color.Bold)
	gray := color.New(color.FgHiBlack)

	bold.Fprintf(out, "%s", e.Title)
	gray.Fprintf(out, " #%d\n", e.ID)

	field := func(name, value string) {
		if value == "" {
			return
		}
		gray.Fprintf(out, "  %-10s ", name)
		fmt.Fprintln(out, value)
	}
	field("type", string(e.Type))
	field("years", years(e))
	if e.IsSeries() && e.TotalSeasons > 0 {
		field("seasons", strconv.Itoa(e.TotalSeasons))
	}
	if e.Duration > 0 {
		field("duration", fmt.Sprintf("%d min", e.Duration))
	}
	if e.ReleaseDate != nil {
		field("released", e.ReleaseDate.Format(time.DateOnly))
	}
	field("imdb", e.SourceID)
	field("kinopoisk", e.KPID)
	field("genres", strings.Join(e.Genres, ", "))
	field("countries", strings.Join(e.Countries, ", "))
	field("authors", strings.Join(e.Authors, ", "))
	field("actors", strings.Join(e.Actors, ", "))
	field("poster", e.PosterURL)
	field("updated", since(e.UpdatedAt))

	if len(e.Ratings) > 0 {
		rows := make([][]string, 0, len(e.Ratings))
		for _, r := range e.Ratings {
			rows = append(rows, []string{r.Source, formatRating(r)})
		}
		fmt.Fprintln(out, renderTable([]string{"Source", "Rating"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
	if e.Description != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, e.Description)
	}
}

func formatRating(r store.Rating) string {
	if r.Percent {
		return strconv.FormatFloat(r.Value, 'f', -1, 64) + "%"
	}
	return strconv.FormatFloat(r.Value, 'f', -1, 64) + "/" + strconv.FormatFloat(r.MaxValue, 'f', -1, 64)
}

func years(e *store.Entity) string {
	switch {
	case e.YearStart == 0:
		return ""
	case e.YearEnd == 0 && e.IsSeries():
		return fmt.Sprintf("%d-", e.YearStart)
	case e.YearEnd == 0 || e.YearEnd == e.YearStart:
		return strconv.Itoa(e.YearStart)
	default:
		return fmt.Sprintf("%d-%d", e.YearStart, e.YearEnd)
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func since(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func optionalInt(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"exclusivewire/internal/config"
	"exclusivewire/internal/db"
	"exclusivewire/internal/domain"
	"exclusivewire/internal/engine"
	"exclusivewire/internal/migrate"
	"exclusivewire/internal/repo"
	"exclusivewire/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "xw",
	Short: "ExclusiveWire CLI",
	Long: `ExclusiveWire is a press-release marketplace: companies post embargoed
announcements, journalists claim exclusive coverage rights, and a claim opens
a private chat between the two sides until the story ships.

- Workspace: the .exclusivewire directory holding the database.
- Announcement: an embargoed press release offered for exclusive coverage;
  statuses go awaiting_claim -> claimed -> published.
- Claim: at most one journalist wins the exclusive; losers get a conflict.
- Matching: 'xw announcement matches' ranks journalists by beat fit,
  expertise, responsiveness, trust, and activity.
- Event log: diary of changes, view with 'xw log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	workspace := viper.GetString("workspace")
	_ = godotenv.Load(filepath.Join(workspace, ".env"))
	viper.SetEnvPrefix("EXCLUSIVEWIRE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user-id", "local-user", "acting user identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user-id", rootCmd.PersistentFlags().Lookup("user-id"))
}

func registerCommands() {
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(announcementCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage directory users"}
	cmd.AddCommand(userCreateCmd())
	cmd.AddCommand(userShowCmd())
	return cmd
}

func userCreateCmd() *cobra.Command {
	var id, name, role, companyName, publication string
	var beats []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, engine.UserCreateOptions{
					ID:          id,
					Name:        name,
					Role:        role,
					BeatTags:    beats,
					CompanyName: companyName,
					Publication: publication,
					ActorID:     viper.GetString("user-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "user id (generated if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "", "company or journalist")
	cmd.Flags().StringArrayVar(&beats, "beat", []string{}, "beat tag (repeatable, journalists)")
	cmd.Flags().StringVar(&companyName, "company-name", "", "company name")
	cmd.Flags().StringVar(&publication, "publication", "", "journalist's publication")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func userShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				u, err := r.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	return cmd
}

func announcementCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "announcement", Short: "Manage announcements"}
	cmd.AddCommand(announcementCreateCmd())
	cmd.AddCommand(announcementListCmd())
	cmd.AddCommand(announcementOpenCmd())
	cmd.AddCommand(announcementShowCmd())
	cmd.AddCommand(announcementClaimCmd())
	cmd.AddCommand(announcementPublishCmd())
	cmd.AddCommand(announcementMatchesCmd())
	return cmd
}

func announcementCreateCmd() *cobra.Command {
	var id, title, summary, content, embargo, plan string
	var beats, industryTags, attachments []string
	var fee int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an announcement",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.CreateAnnouncement(ctx, engine.AnnouncementCreateOptions{
					ID:                 id,
					CompanyID:          viper.GetString("user-id"),
					Title:              title,
					Summary:            summary,
					FullContent:        content,
					Attachments:        attachments,
					IndustryTags:       industryTags,
					JournalistBeatTags: beats,
					EmbargoAt:          embargo,
					Plan:               plan,
					Fee:                fee,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "announcement id (generated if omitted)")
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&summary, "summary", "", "teaser shown before claiming")
	cmd.Flags().StringVar(&content, "content", "", "full press release text")
	cmd.Flags().StringArrayVar(&beats, "beat", []string{}, "required journalist beat (repeatable)")
	cmd.Flags().StringArrayVar(&industryTags, "industry-tag", []string{}, "industry tag (repeatable)")
	cmd.Flags().StringArrayVar(&attachments, "attachment", []string{}, "attachment URL (repeatable)")
	cmd.Flags().StringVar(&embargo, "embargo", "", "embargo timestamp (RFC3339)")
	cmd.Flags().StringVar(&plan, "plan", "Basic", "plan: Basic or Premium")
	cmd.Flags().Int64Var(&fee, "fee", 0, "fee in cents")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("summary")
	_ = cmd.MarkFlagRequired("content")
	_ = cmd.MarkFlagRequired("embargo")
	return cmd
}

func renderAnnouncements(items []domain.Announcement) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Plan", "Embargo", "Claimed By"})
	for _, a := range items {
		claimedBy := ""
		if a.ClaimedBy != nil {
			claimedBy = *a.ClaimedBy
		}
		tw.AppendRow(table.Row{a.ID, a.Title, a.Status, a.Plan, a.EmbargoAt, claimedBy})
	}
	tw.Render()
	return nil
}

func announcementListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List announcements visible to the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ident, err := identityFor(ctx, e, viper.GetString("user-id"))
				if err != nil {
					return err
				}
				items, err := e.ListAnnouncements(ctx, ident, limit)
				if err != nil {
					return err
				}
				return renderAnnouncements(items)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results")
	return cmd
}

func announcementOpenCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "open",
		Short: "List unclaimed announcements still under embargo",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAnnouncements(ctx, repo.AnnouncementFilters{
					Status:       domain.StatusAwaitingClaim,
					EmbargoAfter: time.Now().UTC().Format(time.RFC3339),
					Limit:        limit,
				})
				if err != nil {
					return err
				}
				return renderAnnouncements(items)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results")
	return cmd
}

func announcementShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <announcement-id>",
		Short: "Show an announcement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ident, err := identityFor(ctx, e, viper.GetString("user-id"))
				if err != nil {
					return err
				}
				a, err := e.GetAnnouncement(ctx, args[0], ident)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func announcementClaimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim <announcement-id>",
		Short: "Claim exclusive coverage rights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.ClaimExclusive(ctx, args[0], viper.GetString("user-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"announcement": res.Announcement,
					"chat_id":      res.ChatThreadID,
				})
			})
		},
	}
	return cmd
}

func announcementPublishCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "publish <announcement-id>",
		Short: "Mark a claimed announcement as published",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ident, err := identityFor(ctx, e, viper.GetString("user-id"))
				if err != nil {
					return err
				}
				a, err := e.PublishAnnouncement(ctx, args[0], url, ident)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "published story URL")
	return cmd
}

func announcementMatchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matches <announcement-id>",
		Short: "Rank journalists for an announcement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ident, err := identityFor(ctx, e, viper.GetString("user-id"))
				if err != nil {
					return err
				}
				matches, err := e.Matches(ctx, args[0], ident)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(matches)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Journalist", "Score", "Matching Beats", "Reasons"})
				for _, m := range matches {
					tw.AppendRow(table.Row{
						m.JournalistID,
						m.Score,
						strings.Join(m.MatchingBeats, ", "),
						strings.Join(m.Reasons, "; "),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "chat", Short: "Claim chat threads"}
	cmd.AddCommand(chatShowCmd())
	cmd.AddCommand(chatSendCmd())
	return cmd
}

func chatShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <announcement-id>",
		Short: "Show the chat thread for an announcement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ident, err := identityFor(ctx, e, viper.GetString("user-id"))
				if err != nil {
					return err
				}
				thread, err := e.GetChat(ctx, args[0], ident)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(thread)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Sent", "Sender", "Message"})
				for _, m := range thread.Messages {
					tw.AppendRow(table.Row{m.SentAt, m.SenderID, m.Body})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func chatSendCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "send <announcement-id>",
		Short: "Send a chat message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ident, err := identityFor(ctx, e, viper.GetString("user-id"))
				if err != nil {
					return err
				}
				msg, err := e.PostChatMessage(ctx, args[0], ident, message)
				if err != nil {
					return err
				}
				return printJSONOrTable(msg)
			})
		},
	}
	cmd.Flags().StringVar(&message, "message", "", "message body")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "profile", Short: "Journalist profiles"}
	cmd.AddCommand(profileSetCmd())
	cmd.AddCommand(profileShowCmd())
	cmd.AddCommand(profileVerifyCmd())
	return cmd
}

// parseBeatSpec parses "category" or "category:expertise[:years]".
func parseBeatSpec(spec string) (domain.BeatDetail, error) {
	parts := strings.Split(spec, ":")
	beat := domain.BeatDetail{Category: parts[0], Expertise: domain.ExpertiseIntermediate}
	if beat.Category == "" {
		return beat, fmt.Errorf("beat %q: category is required", spec)
	}
	if len(parts) > 1 && parts[1] != "" {
		beat.Expertise = domain.ExpertiseLevel(parts[1])
	}
	if len(parts) > 2 {
		if _, err := fmt.Sscanf(parts[2], "%d", &beat.YearsInBeat); err != nil {
			return beat, fmt.Errorf("beat %q: invalid years", spec)
		}
	}
	return beat, nil
}

func profileSetCmd() *cobra.Command {
	var bio, responseTime, exclusiveInterest string
	var years int
	var searchable bool
	var specializations, beatSpecs []string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update the acting journalist's profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			beats := make([]domain.BeatDetail, 0, len(beatSpecs))
			for _, spec := range beatSpecs {
				beat, err := parseBeatSpec(spec)
				if err != nil {
					return err
				}
				beats = append(beats, beat)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.ProfileUpdateOptions{
					Bio:               bio,
					YearsExperience:   years,
					Specializations:   specializations,
					Beats:             beats,
					ResponseTime:      responseTime,
					ExclusiveInterest: exclusiveInterest,
				}
				if cmd.Flags().Changed("searchable") {
					opts.Searchable = &searchable
				}
				p, err := e.UpdateJournalistProfile(ctx, viper.GetString("user-id"), opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&bio, "bio", "", "short biography")
	cmd.Flags().IntVar(&years, "years", 0, "years of experience")
	cmd.Flags().StringArrayVar(&specializations, "specialization", []string{}, "specialization (repeatable)")
	cmd.Flags().StringArrayVar(&beatSpecs, "beat", []string{}, "beat as category[:expertise[:years]] (repeatable)")
	cmd.Flags().StringVar(&responseTime, "response-time", "", "immediate, same-day, within-week, or flexible")
	cmd.Flags().StringVar(&exclusiveInterest, "exclusive-interest", "", "high, medium, or low")
	cmd.Flags().BoolVar(&searchable, "searchable", true, "visible to the matching engine")
	return cmd
}

func profileShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a journalist profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.GetProfile(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func profileVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <user-id>",
		Short: "Verify a journalist and raise their trust score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.VerifyJournalist(ctx, args[0], viper.GetString("user-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	cmd.AddCommand(apikeyCreateCmd())
	cmd.AddCommand(apikeyListCmd())
	cmd.AddCommand(apikeyRevokeCmd())
	return cmd
}

func apikeyCreateCmd() *cobra.Command {
	var forUser, name, key string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if forUser == "" {
				forUser = viper.GetString("user-id")
			}
			if key == "" {
				return fmt.Errorf("--key required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if _, err := r.GetUser(ctx, forUser); err != nil {
					return err
				}
				rec := domain.APIKey{
					ID:      fmt.Sprintf("key-%d", time.Now().UnixNano()),
					UserID:  forUser,
					Name:    name,
					KeyHash: repo.HashAPIKey(key),
				}
				if err := r.InsertAPIKey(ctx, rec); err != nil {
					return err
				}
				return printJSONOrTable(rec)
			})
		},
	}
	cmd.Flags().StringVar(&forUser, "for", "", "user the key authenticates as (defaults to --user-id)")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	cmd.Flags().StringVar(&key, "key", "", "plaintext key to hash and store")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var forUser string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, forUser)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "User", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.UserID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&forUser, "for", "", "filter by user id")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: announcements, claims, publications, chat, and verification.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacyHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:             os.Getenv("EXCLUSIVEWIRE_JWT_SECRET"),
				AllowLegacyUserHeader: allowLegacyHeader,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("EXCLUSIVEWIRE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving ExclusiveWire API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowLegacyHeader, "allow-legacy-user-header", false, "accept X-User-Id without auth (deprecated)")
	return cmd
}

// --- helpers ---

func identityFor(ctx context.Context, e engine.Engine, userID string) (domain.Identity, error) {
	u, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("resolve user %s: %w", userID, err)
	}
	return domain.Identity{UserID: u.ID, Role: u.Role}, nil
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

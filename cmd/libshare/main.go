package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"syscall"

	"libshare/internal/app"
	"libshare/internal/config"
	"libshare/internal/libshare"
	"libshare/internal/model"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a ShareApp. The caller must defer
// app.Close(). operation identifies the CLI command being run
// (e.g. "ShareAdd", "LinkCreate").
func newApp(ctx context.Context, operation string) (*app.ShareApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewShareApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// actorEmail returns the acting user from the persistent --as flag.
func actorEmail(cmd *cobra.Command) (string, error) {
	email, _ := cmd.Flags().GetString("as")
	if email == "" {
		return "", fmt.Errorf("--as EMAIL is required")
	}
	return email, nil
}

// linkPassword resolves the link password from --password, or prompts on
// the terminal when --prompt-password is set.
func linkPassword(cmd *cobra.Command) (string, error) {
	password, _ := cmd.Flags().GetString("password")
	if password != "" {
		return password, nil
	}
	prompt, _ := cmd.Flags().GetBool("prompt-password")
	if !prompt {
		return "", nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:   "libshare",
	Short: "Library sharing and link service",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Database:     %s\n", cfg.Database.Type)
		fmt.Printf("Repo Service: %s\n", cfg.RepoService.Type)
		fmt.Printf("Cache:        %s\n", cfg.Cache.Type)
		fmt.Printf("Events:       %s\n", cfg.Events.Type)
		fmt.Printf("Mail:         %s\n", cfg.Mail.Type)
		fmt.Printf("Link Base:    %s\n", cfg.Links.BaseURL)
		return nil
	},
}

// share command
var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Manage direct shares",
}

var shareAddCmd = &cobra.Command{
	Use:   "add REPO_ID TARGET",
	Short: "Share a repo or folder with a user, group or all members",
	Long: `Share a repo with a target. TARGET is an email address, "group:<id>",
or "public". With --path, a folder inside the repo is shared instead of
the whole repo.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := actorEmail(cmd)
		if err != nil {
			return err
		}
		path, _ := cmd.Flags().GetString("path")
		perm, _ := cmd.Flags().GetString("perm")

		ctx := cmd.Context()
		a, err := newApp(ctx, "ShareAdd")
		if err != nil {
			return err
		}
		defer a.Close()

		share, err := a.Share(ctx, email, args[0], path, args[1], perm)
		if err != nil {
			return err
		}

		fmt.Printf("Shared %s to %s (%s)\n", share.RepoID, share.Target, share.Perm)
		return nil
	},
}

var shareRemoveCmd = &cobra.Command{
	Use:   "remove REPO_ID TARGET",
	Short: "Remove a share",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := actorEmail(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "ShareRemove")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Unshare(ctx, email, args[0], args[1]); err != nil {
			if errors.Is(err, libshare.ErrNotFound) {
				fmt.Fprintf(os.Stderr, "Warning: no share of %s to %s\n", args[0], args[1])
				return nil
			}
			return err
		}

		fmt.Printf("Unshared %s from %s\n", args[0], args[1])
		return nil
	},
}

var shareListCmd = &cobra.Command{
	Use:   "list [REPO_ID]",
	Short: "List shares, yours or one repo's",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := actorEmail(cmd)
		if err != nil {
			return err
		}
		repoID := ""
		if len(args) > 0 {
			repoID = args[0]
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "ShareList")
		if err != nil {
			return err
		}
		defer a.Close()

		shares, err := a.ListShares(ctx, email, repoID)
		if err != nil {
			return err
		}

		if len(shares) == 0 {
			fmt.Println("No shares.")
			return nil
		}
		for _, s := range shares {
			fmt.Printf("%s  %-30s  %-3s  %s\n",
				s.RepoID,
				s.Target.Key(),
				s.Perm,
				s.CreatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return nil
	},
}

// link command
var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Manage share links",
}

var linkCreateCmd = &cobra.Command{
	Use:   "create REPO_ID PATH",
	Short: "Create (or fetch) a download link",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := actorEmail(cmd)
		if err != nil {
			return err
		}
		dir, _ := cmd.Flags().GetBool("dir")
		expireDays, _ := cmd.Flags().GetInt("expire-days")
		password, err := linkPassword(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "LinkCreate")
		if err != nil {
			return err
		}
		defer a.Close()

		link, err := a.CreateDownloadLink(ctx, email, args[0], args[1], dir, password, expireDays)
		if err != nil {
			return err
		}

		printLink(link)
		return nil
	},
}

var linkCreateUploadCmd = &cobra.Command{
	Use:   "create-upload REPO_ID DIR",
	Short: "Create (or fetch) an upload link for a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := actorEmail(cmd)
		if err != nil {
			return err
		}
		password, err := linkPassword(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "LinkCreateUpload")
		if err != nil {
			return err
		}
		defer a.Close()

		link, err := a.CreateUploadLink(ctx, email, args[0], args[1], password)
		if err != nil {
			return err
		}

		printLink(link)
		return nil
	},
}

var linkGetCmd = &cobra.Command{
	Use:   "get REPO_ID PATH",
	Short: "Show an existing download link without creating one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := actorEmail(cmd)
		if err != nil {
			return err
		}
		dir, _ := cmd.Flags().GetBool("dir")

		ctx := cmd.Context()
		a, err := newApp(ctx, "LinkGet")
		if err != nil {
			return err
		}
		defer a.Close()

		link, err := a.GetDownloadLink(ctx, email, args[0], args[1], dir)
		if err != nil {
			return err
		}

		printLink(link)
		return nil
	},
}

var linkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your links",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := actorEmail(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "LinkList")
		if err != nil {
			return err
		}
		defer a.Close()

		links, err := a.ListLinks(ctx, email)
		if err != nil {
			return err
		}

		if len(links) == 0 {
			fmt.Println("No links.")
			return nil
		}
		for _, l := range links {
			expiry := "never"
			if l.ExpiresAt != nil {
				expiry = l.ExpiresAt.Format("2006-01-02")
			}
			protected := " "
			if l.Protected {
				protected = "P"
			}
			fmt.Printf("%s  %s  %s%s  expires:%s  %s\n",
				l.Token, l.RepoID, l.Path, protected, expiry, l.URL)
		}
		return nil
	},
}

var linkRevokeCmd = &cobra.Command{
	Use:   "revoke TOKEN",
	Short: "Revoke a link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := actorEmail(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "LinkRevoke")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RevokeLink(ctx, email, args[0]); err != nil {
			return err
		}

		fmt.Printf("Revoked %s\n", args[0])
		return nil
	},
}

var linkRedeemCmd = &cobra.Command{
	Use:   "redeem TOKEN",
	Short: "Redeem a link token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		upload, _ := cmd.Flags().GetBool("upload")
		password, err := linkPassword(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "LinkRedeem")
		if err != nil {
			return err
		}
		defer a.Close()

		redeem := a.Redeem
		if upload {
			redeem = a.RedeemUpload
		}
		r, err := redeem(ctx, args[0], password)
		if err != nil {
			return err
		}

		fmt.Printf("Repo:  %s\n", r.RepoID)
		fmt.Printf("Path:  %s\n", r.Path)
		fmt.Printf("Kind:  %s\n", r.Kind)
		fmt.Printf("Owner: %s\n", r.Owner)
		return nil
	},
}

// trash command
var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "Manage trashed repos (administrators only)",
}

var trashListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trashed repos",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := actorEmail(cmd)
		if err != nil {
			return err
		}
		owner, _ := cmd.Flags().GetString("owner")

		ctx := cmd.Context()
		a, err := newApp(ctx, "TrashList")
		if err != nil {
			return err
		}
		defer a.Close()

		repos, err := a.ListTrash(ctx, email, owner)
		if err != nil {
			return err
		}

		if len(repos) == 0 {
			fmt.Println("Trash is empty.")
			return nil
		}
		for _, r := range repos {
			deleted := ""
			if r.DeletedAt != nil {
				deleted = r.DeletedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%s  %-25s  %-30s  %s\n", r.ID, r.Name, r.Owner, deleted)
		}
		return nil
	},
}

var trashRestoreCmd = &cobra.Command{
	Use:   "restore REPO_ID",
	Short: "Restore a repo from trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := actorEmail(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "TrashRestore")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RestoreTrash(ctx, email, args[0]); err != nil {
			return err
		}

		fmt.Printf("Restored %s\n", args[0])
		return nil
	},
}

var trashPurgeCmd = &cobra.Command{
	Use:   "purge REPO_ID",
	Short: "Permanently delete one trashed repo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := actorEmail(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "TrashPurge")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.PurgeTrash(ctx, email, args[0]); err != nil {
			return err
		}

		fmt.Printf("Purged %s\n", args[0])
		return nil
	},
}

var trashEmptyCmd = &cobra.Command{
	Use:   "empty",
	Short: "Permanently delete all trashed repos",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := actorEmail(cmd)
		if err != nil {
			return err
		}
		owner, _ := cmd.Flags().GetString("owner")

		ctx := cmd.Context()
		a, err := newApp(ctx, "TrashEmpty")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.EmptyTrash(ctx, email, owner); err != nil {
			return err
		}

		fmt.Println("Trash emptied.")
		return nil
	},
}

// code command
var codeCmd = &cobra.Command{
	Use:   "code",
	Short: "Manage link verification codes",
}

var codeIssueCmd = &cobra.Command{
	Use:   "issue TOKEN EMAIL",
	Short: "Issue a verification code for a link visitor",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "CodeIssue")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.IssueCode(ctx, args[0], args[1]); err != nil {
			return err
		}

		fmt.Printf("Code sent to %s\n", args[1])
		return nil
	},
}

var codeVerifyCmd = &cobra.Command{
	Use:   "verify EMAIL CODE",
	Short: "Verify a code",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "CodeVerify")
		if err != nil {
			return err
		}
		defer a.Close()

		ok, err := a.VerifyCode(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("code invalid or expired")
		}

		fmt.Println("Code valid.")
		return nil
	},
}

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage registered users",
}

var userAddCmd = &cobra.Command{
	Use:   "add EMAIL",
	Short: "Register a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		admin, _ := cmd.Flags().GetBool("admin")
		orgID, _ := cmd.Flags().GetString("org")
		orgStaff, _ := cmd.Flags().GetBool("org-staff")
		noLinks, _ := cmd.Flags().GetBool("no-links")

		ctx := cmd.Context()
		a, err := newApp(ctx, "UserAdd")
		if err != nil {
			return err
		}
		defer a.Close()

		u := &model.User{
			Email:          args[0],
			OrgID:          orgID,
			SiteAdmin:      admin,
			OrgStaff:       orgStaff,
			CanCreateLinks: !noLinks,
		}
		if err := a.Directory().AddUser(ctx, u); err != nil {
			return err
		}

		fmt.Printf("Registered %s\n", u.Email)
		return nil
	},
}

// group command
var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage groups",
}

var groupAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		orgID, _ := cmd.Flags().GetString("org")

		ctx := cmd.Context()
		a, err := newApp(ctx, "GroupAdd")
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.Directory().AddGroup(ctx, args[0], orgID)
		if err != nil {
			return err
		}

		fmt.Printf("Created group %d (%s)\n", id, args[0])
		return nil
	},
}

var groupAddMemberCmd = &cobra.Command{
	Use:   "add-member GROUP_ID EMAIL",
	Short: "Add a user to a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		groupID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid group id: %s", args[0])
		}
		staff, _ := cmd.Flags().GetBool("staff")

		ctx := cmd.Context()
		a, err := newApp(ctx, "GroupAddMember")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Directory().AddMember(ctx, groupID, args[1], staff); err != nil {
			return err
		}

		fmt.Printf("Added %s to group %d\n", args[1], groupID)
		return nil
	},
}

// repo command
var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Repo operations",
}

var repoCreateGroupCmd = &cobra.Command{
	Use:   "create-group GROUP_ID NAME",
	Short: "Create a repo and share it to a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := actorEmail(cmd)
		if err != nil {
			return err
		}
		groupID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid group id: %s", args[0])
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "RepoCreateGroup")
		if err != nil {
			return err
		}
		defer a.Close()

		repoID, err := a.CreateGroupRepo(ctx, email, groupID, args[1])
		if err != nil {
			return err
		}

		fmt.Printf("Created repo %s for group %d\n", repoID, groupID)
		return nil
	},
}

func printLink(l *app.LinkResult) {
	fmt.Printf("Token: %s\n", l.Token)
	fmt.Printf("URL:   %s\n", l.URL)
	if l.Protected {
		fmt.Println("Password protected.")
	}
	if l.ExpiresAt != nil {
		fmt.Printf("Expires: %s\n", l.ExpiresAt.Format("2006-01-02 15:04:05"))
	}
}

func init() {
	rootCmd.PersistentFlags().String("as", "", "Acting user email")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// share subcommands
	shareCmd.AddCommand(shareAddCmd)
	shareAddCmd.Flags().String("path", "/", "Folder inside the repo to share")
	shareAddCmd.Flags().String("perm", "r", "Permission to grant: r or rw")
	shareCmd.AddCommand(shareRemoveCmd)
	shareCmd.AddCommand(shareListCmd)

	// link subcommands
	for _, c := range []*cobra.Command{linkCreateCmd, linkCreateUploadCmd, linkRedeemCmd} {
		c.Flags().String("password", "", "Link password")
		c.Flags().Bool("prompt-password", false, "Prompt for the password on the terminal")
	}
	linkCreateCmd.Flags().Bool("dir", false, "Link a directory instead of a file")
	linkCreateCmd.Flags().Int("expire-days", 0, "Days until the link expires (0 = never)")
	linkGetCmd.Flags().Bool("dir", false, "Look up a directory link")
	linkRedeemCmd.Flags().Bool("upload", false, "Redeem an upload link")
	linkCmd.AddCommand(linkCreateCmd)
	linkCmd.AddCommand(linkCreateUploadCmd)
	linkCmd.AddCommand(linkGetCmd)
	linkCmd.AddCommand(linkListCmd)
	linkCmd.AddCommand(linkRevokeCmd)
	linkCmd.AddCommand(linkRedeemCmd)

	// trash subcommands
	trashCmd.AddCommand(trashListCmd)
	trashListCmd.Flags().String("owner", "", "Only this owner's trashed repos")
	trashCmd.AddCommand(trashRestoreCmd)
	trashCmd.AddCommand(trashPurgeCmd)
	trashCmd.AddCommand(trashEmptyCmd)
	trashEmptyCmd.Flags().String("owner", "", "Only empty this owner's trash")

	// code subcommands
	codeCmd.AddCommand(codeIssueCmd)
	codeCmd.AddCommand(codeVerifyCmd)

	// user subcommands
	userCmd.AddCommand(userAddCmd)
	userAddCmd.Flags().Bool("admin", false, "Grant site administrator standing")
	userAddCmd.Flags().String("org", "", "Organization the user belongs to")
	userAddCmd.Flags().Bool("org-staff", false, "Grant organization staff standing")
	userAddCmd.Flags().Bool("no-links", false, "Refuse link creation for this user")

	// group subcommands
	groupCmd.AddCommand(groupAddCmd)
	groupAddCmd.Flags().String("org", "", "Organization the group belongs to")
	groupCmd.AddCommand(groupAddMemberCmd)
	groupAddMemberCmd.Flags().Bool("staff", false, "Make the user group staff")

	// repo subcommands
	repoCmd.AddCommand(repoCreateGroupCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(trashCmd)
	rootCmd.AddCommand(codeCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(repoCmd)
}

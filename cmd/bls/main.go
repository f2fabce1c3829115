package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bls-go/internal/app"
	"bls-go/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a LibraryApp. The caller must defer
// app.Close().
func newApp(cmd *cobra.Command) (*app.LibraryApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewLibraryApp(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// progressPrinter renders the transfer percentage in place.
func progressPrinter(label string) func(pct int) {
	return func(pct int) {
		fmt.Printf("\r%s %3d%%", label, pct)
		if pct >= 100 {
			fmt.Println()
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "bls",
	Short: "Personal book library sync",
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

		// Generate a new device ID
		deviceID := uuid.New().String()

		cfg := config.NewConfig(deviceID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Device ID: %s\n", deviceID)
		fmt.Printf("Base Dir:  %s\n", defaults["base_dir"])
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
		fmt.Printf("Device ID: %s\n", cfg.DeviceID)
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Remote:    %s\n", cfg.Remote.Type)
		return nil
	},
}

// login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the remote access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		if cfg.Remote.Type != "api" || cfg.Remote.TokenPath == "" {
			return fmt.Errorf("remote is not an api remote with a token_path")
		}

		fmt.Print("Access token: ")
		token, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		if len(strings.TrimSpace(string(token))) == 0 {
			return fmt.Errorf("empty token")
		}

		if err := os.MkdirAll(filepath.Dir(cfg.Remote.TokenPath), 0700); err != nil {
			return fmt.Errorf("creating token directory: %w", err)
		}
		if err := os.WriteFile(cfg.Remote.TokenPath, token, 0600); err != nil {
			return fmt.Errorf("writing token: %w", err)
		}

		fmt.Printf("Token stored at %s\n", cfg.Remote.TokenPath)
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import PATH",
	Short: "Import a book into the library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		absPath, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		book, err := a.Import(absPath, overwrite)
		if err != nil {
			return err
		}

		fmt.Printf("Imported %q (%s)\n", book.Title, book.Hash)
		return nil
	},
}

// open command
var openCmd = &cobra.Command{
	Use:   "open PATH",
	Short: "Open a book without importing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		absPath, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		book, err := a.Open(absPath)
		if err != nil {
			return err
		}

		fmt.Printf("%s\nTitle:  %s\nAuthor: %s\nFormat: %s\n",
			book.Hash, book.Title, book.Author, book.Format)
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the library",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		books := a.Books()
		if len(books) == 0 {
			fmt.Println("Library is empty.")
			return nil
		}

		for _, b := range books {
			local := " "
			if b.DownloadedAt != nil {
				local = "L"
			}
			uploaded := " "
			if b.UploadedAt != nil {
				uploaded = "U"
			}
			fmt.Printf("%s%s  %s  %-40q  %s\n", local, uploaded, b.Hash, b.Title, b.Author)
		}
		return nil
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete HASH",
	Short: "Delete a book from the library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Delete(args[0]); err != nil {
			return err
		}
		fmt.Println("Deleted.")
		return nil
	},
}

// upload command
var uploadCmd = &cobra.Command{
	Use:   "upload HASH",
	Short: "Upload a book to the remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Upload(cmd.Context(), args[0], progressPrinter("Uploading")); err != nil {
			return err
		}
		fmt.Println("Upload complete.")
		return nil
	},
}

// download command
var downloadCmd = &cobra.Command{
	Use:   "download HASH",
	Short: "Download a book from the remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		coverOnly, _ := cmd.Flags().GetBool("cover-only")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Download(cmd.Context(), args[0], coverOnly, progressPrinter("Downloading")); err != nil {
			return err
		}
		fmt.Println("Download complete.")
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the library with the remote",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Sync(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Sync complete.")
		return nil
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			started := time.UnixMilli(op.StartedAt)
			duration := time.Duration(op.EndedAt-op.StartedAt) * time.Millisecond
			line := fmt.Sprintf("%-10s  %s  %-8s  %s",
				op.Kind,
				started.Format("2006-01-02 15:04:05"),
				op.Status,
				duration.Truncate(time.Millisecond),
			)
			if op.Detail != "" {
				line += "  " + op.Detail
			}
			if op.Error != "" {
				line += "  " + op.Error
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().Bool("overwrite", false, "Rewrite already-stored files for the same book")
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().Bool("cover-only", false, "Fetch only the cover image")
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var forceFlag bool

var filesCmd = &cobra.Command{
	Use:     "files",
	Aliases: []string{"file", "f"},
	Short:   "Manage stored workspace files",
}

var filesListCmd = &cobra.Command{
	Use:   "list <workspace>",
	Short: "List the files of a workspace",
	Args:  cobra.ExactArgs(1),
	RunE:  runFilesList,
}

var filesCatCmd = &cobra.Command{
	Use:   "cat <workspace> <name>",
	Short: "Print a stored file",
	Args:  cobra.ExactArgs(2),
	RunE:  runFilesCat,
}

var filesPutCmd = &cobra.Command{
	Use:   "put <workspace> <name> [file|-]",
	Short: "Store a file, read from a local path or stdin",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runFilesPut,
}

var filesRmCmd = &cobra.Command{
	Use:   "rm <workspace> <name>",
	Short: "Delete a stored file",
	Args:  cobra.ExactArgs(2),
	RunE:  runFilesRm,
}

var filesRunCmd = &cobra.Command{
	Use:   "run <workspace> <name>",
	Short: "Execute a stored file",
	Args:  cobra.ExactArgs(2),
	RunE:  runFilesRun,
}

func init() {
	rootCmd.AddCommand(filesCmd)
	filesCmd.AddCommand(filesListCmd, filesCatCmd, filesPutCmd, filesRmCmd, filesRunCmd)

	filesRmCmd.Flags().BoolVar(&forceFlag, "force", false, "Skip confirmation")
	filesRunCmd.Flags().StringVar(&versionFlag, "version", "", "Ruby version to run (default: latest available)")
}

func runFilesList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	files, err := store.ListFiles(context.Background(), args[0])
	if err != nil {
		return err
	}

	if len(files) == 0 {
		fmt.Println("No files found.")
		return nil
	}

	fmt.Printf("%-40s %10s  %s\n", "NAME", "SIZE", "UPDATED")
	fmt.Println(strings.Repeat("─", 65))
	for _, f := range files {
		fmt.Printf("%-40s %10d  %s\n", f.Name, f.Size, timeAgo(f.UpdatedAt))
	}
	return nil
}

func runFilesCat(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := store.ReadFile(context.Background(), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), f.Content)
	return nil
}

func runFilesPut(cmd *cobra.Command, args []string) error {
	content, err := readSource(cmd.InOrStdin(), args[2:])
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := store.WriteFile(context.Background(), args[0], args[1], content)
	if err != nil {
		return err
	}
	fmt.Printf("Stored %s/%s (%d bytes)\n", f.Workspace, f.Name, f.Size)
	return nil
}

func runFilesRm(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if !forceFlag {
		fmt.Printf("Delete %s/%s? [y/N] ", args[0], args[1])
		var confirm string
		fmt.Scanln(&confirm)
		if strings.ToLower(confirm) != "y" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := store.DeleteFile(context.Background(), args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("Deleted %s/%s\n", args[0], args[1])
	return nil
}

func runFilesRun(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := store.ReadFile(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	version, err := resolveVersion(ctx, a.service, versionFlag)
	if err != nil {
		return err
	}
	return printResult(os.Stdout, os.Stderr, a.service.Execute(ctx, f.Content, version))
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

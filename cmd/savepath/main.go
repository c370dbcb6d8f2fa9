package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"savepath/internal/app"
	"savepath/internal/config"
	"savepath/internal/scheduler"
)

type ExitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }
func (e *exitError) ExitCode() int { return e.code }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if ex, ok := err.(ExitCoder); ok {
			os.Exit(ex.ExitCode())
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var jsonOutput bool

	newSvc := func() (*app.Service, error) {
		return app.New(app.Options{ConfigPath: configPath})
	}

	cmd := &cobra.Command{
		Use:           "savepath",
		Short:         "Organize save files into pathways with rotating auto-save slots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")

	cmd.AddCommand(newPathwayCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newSaveCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newWatchCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newConfigCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newVersionCmd(&jsonOutput))

	return cmd
}

func newPathwayCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	pathwayCmd := &cobra.Command{Use: "pathway", Aliases: []string{"pw", "pathways"}, Short: "Manage pathways"}

	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List pathways under the storage root",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			sums := svc.Summaries()
			if *jsonOutput {
				return print(true, sums, "")
			}
			if len(sums) == 0 {
				fmt.Println("no pathways under " + svc.Settings().Root())
				return nil
			}
			for _, s := range sums {
				recent := "-"
				if s.Recent != nil {
					recent = s.Recent.Name + " @ " + s.Recent.ModTime.Format(time.RFC3339)
				}
				fmt.Printf("- %s manual=%d auto=%d recent=%s\n", s.ID, s.ManualSaves, s.AutoSaves, recent)
			}
			return nil
		},
	}

	createCmd := &cobra.Command{
		Use:     "create <id>",
		Aliases: []string{"new", "add"},
		Short:   "Create a pathway directory",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			p, err := svc.CreatePathway(args[0])
			if err != nil {
				return err
			}
			return print(*jsonOutput, map[string]string{"id": p.ID(), "dir": p.Dir()}, "created pathway "+p.ID()+" at "+p.Dir())
		},
	}

	deleteCmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm", "remove", "del"},
		Short:   "Delete a pathway directory and every file in it",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			deleted, err := svc.DeletePathway(args[0])
			if err != nil {
				return err
			}
			if !deleted {
				return print(*jsonOutput, map[string]any{"id": args[0], "deleted": false}, "pathway "+args[0]+" not found")
			}
			return print(*jsonOutput, map[string]any{"id": args[0], "deleted": true}, "deleted pathway "+args[0])
		},
	}

	pathwayCmd.AddCommand(listCmd, createCmd, deleteCmd)
	return pathwayCmd
}

func newSaveCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	saveCmd := &cobra.Command{Use: "save", Aliases: []string{"saves"}, Short: "Resolve and manage save files"}

	pathCmd := &cobra.Command{
		Use:   "path <pathway> [name]",
		Short: "Print the path for a manual save (timestamped when name is omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			path, err := svc.SavePath(args[0], name)
			if err != nil {
				return err
			}
			return print(*jsonOutput, map[string]string{"path": path}, path)
		},
	}

	autoCmd := &cobra.Command{
		Use:   "auto <pathway>",
		Short: "Print the path of the next auto-save slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			path, err := svc.AutoSavePath(args[0])
			if err != nil {
				return err
			}
			return print(*jsonOutput, map[string]string{"path": path}, path)
		},
	}

	listCmd := &cobra.Command{
		Use:     "list <pathway>",
		Aliases: []string{"ls"},
		Short:   "List manual and auto saves, newest first",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			listing, err := svc.List(args[0])
			if err != nil {
				return err
			}
			if *jsonOutput {
				return print(true, listing, "")
			}
			if len(listing.Manual)+len(listing.Auto) == 0 {
				fmt.Println("no saves in " + listing.ID)
				return nil
			}
			for _, f := range listing.Manual {
				fmt.Printf("manual %s %s\n", f.ModTime.Format(time.RFC3339), f.Name)
			}
			for _, f := range listing.Auto {
				fmt.Printf("auto   %s %s\n", f.ModTime.Format(time.RFC3339), f.Name)
			}
			return nil
		},
	}

	rmCmd := &cobra.Command{
		Use:     "rm <pathway> <name>",
		Aliases: []string{"delete", "del", "remove"},
		Short:   "Delete one save file",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			deleted, err := svc.DeleteSave(args[0], args[1])
			if err != nil {
				return err
			}
			msg := "deleted " + args[1]
			if !deleted {
				msg = args[1] + " not found in " + args[0]
			}
			return print(*jsonOutput, map[string]any{"pathway": args[0], "name": args[1], "deleted": deleted}, msg)
		},
	}

	recentCmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the most recently modified save across all pathways",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			id, f, ok := svc.Recent()
			if !ok {
				return print(*jsonOutput, map[string]any{"found": false}, "no saves found")
			}
			return print(*jsonOutput, map[string]any{"found": true, "pathway": id, "file": f}, fmt.Sprintf("%s/%s (%s)", id, f.Name, f.ModTime.Format(time.RFC3339)))
		},
	}

	saveCmd.AddCommand(pathCmd, autoCmd, listCmd, rmCmd, recentCmd)
	return saveCmd
}

func newWatchCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	var source string
	var duration time.Duration
	var period time.Duration
	cmd := &cobra.Command{
		Use:   "watch <pathway>",
		Short: "Copy a source file into rotating auto-save slots on the configured interval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if source == "" {
				return &exitError{code: 2, msg: "--source is required"}
			}
			svc, err := newSvc()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			var saved []string
			err = svc.Watch(ctx, app.WatchOptions{
				Pathway: args[0],
				Source:  source,
				Period:  period,
				OnSave: func(path string) {
					saved = append(saved, path)
					if !*jsonOutput {
						fmt.Println("auto-saved " + path)
					}
				},
			})
			if err != nil && ctx.Err() == nil {
				return err
			}
			if *jsonOutput {
				return print(true, map[string]any{"pathway": args[0], "saved": saved}, "")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "file to snapshot into each auto-save")
	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long (default: until interrupted)")
	cmd.Flags().DurationVar(&period, "tick", time.Second, "tick period of the timer loop")
	return cmd
}

func newConfigCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	configCmd := &cobra.Command{Use: "config", Aliases: []string{"cfg"}, Short: "Show or change configuration"}

	showCmd := &cobra.Command{
		Use:     "show",
		Aliases: []string{"get", "ls"},
		Short:   "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			if *jsonOutput {
				return print(true, svc.Config, "")
			}
			cfg := svc.Config
			fmt.Printf("config:   %s\n", svc.ConfigPath)
			fmt.Printf("root:     %s\n", svc.Settings().Root())
			fmt.Printf("saves:    *.%s (auto prefix %q)\n", cfg.Saves.Extension, cfg.Saves.AutoSavePrefix)
			auto := svc.Registry.AutoSave()
			fmt.Printf("autosave: enabled=%t slots=%d interval=%s clock=%s\n", auto.Enabled, svc.Settings().Slots(), scheduler.FormatInterval(auto.Interval), auto.Clock)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set one configuration key",
		Long:  "Set one configuration key. Keys: " + fmt.Sprint(config.Keys),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			if err := svc.SetConfigValue(args[0], args[1]); err != nil {
				return err
			}
			return print(*jsonOutput, map[string]string{args[0]: args[1]}, fmt.Sprintf("set %s=%s", args[0], args[1]))
		},
	}

	setRootCmd := &cobra.Command{
		Use:   "set-root <dir>",
		Short: "Point the storage root at another directory (files are not moved)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			if err := svc.SetConfigValue("storage.root", args[0]); err != nil {
				return err
			}
			return print(*jsonOutput, map[string]string{"root": svc.Settings().Root()}, "storage root is now "+svc.Settings().Root())
		},
	}

	configCmd.AddCommand(showCmd, setCmd, setRootCmd)
	return configCmd
}

func print(jsonOutput bool, payload any, message string) error {
	if jsonOutput {
		blob, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(blob))
		return nil
	}
	if message != "" {
		fmt.Println(message)
	}
	return nil
}

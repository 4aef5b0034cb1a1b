package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var announceCmd = &cobra.Command{
	Use:   "announce <message>",
	Short: "Publish a global announcement and reset every dismissal",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepository(cmd.Context())
		if err != nil {
			return err
		}
		defer repo.KV().Close()

		ann, err := offlineAdmin(repo).PublishAnnouncement(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "published %s\n", ann.ID)
		return nil
	},
}

var instructionCmd = &cobra.Command{
	Use:   "instruction",
	Short: "Inspect or change the admin system instruction",
}

var instructionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active system instruction",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepository(cmd.Context())
		if err != nil {
			return err
		}
		defer repo.KV().Close()

		text, overridden, err := offlineAdmin(repo).SystemInstruction(cmd.Context())
		if err != nil {
			return err
		}
		if !overridden {
			fmt.Fprintln(cmd.ErrOrStderr(), "(no override, showing the base personality)")
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

var instructionFile string

var instructionSetCmd = &cobra.Command{
	Use:   "set [instruction]",
	Short: "Override the system instruction",
	Long: `Override the system instruction. Use {USER_PROFILE_INFO_BLOCK} where the user's profile
should be inserted; without it the profile block is appended.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if instructionFile != "" {
			raw, err := os.ReadFile(instructionFile)
			if err != nil {
				return err
			}
			text = string(raw)
		}

		repo, err := openRepository(cmd.Context())
		if err != nil {
			return err
		}
		defer repo.KV().Close()
		return offlineAdmin(repo).SaveInstruction(cmd.Context(), text)
	},
}

var instructionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the override and return to the base personality",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepository(cmd.Context())
		if err != nil {
			return err
		}
		defer repo.KV().Close()
		return offlineAdmin(repo).ClearInstruction(cmd.Context())
	},
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage personality templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List personality templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepository(cmd.Context())
		if err != nil {
			return err
		}
		defer repo.KV().Close()

		ts, err := offlineAdmin(repo).Templates(cmd.Context())
		if err != nil {
			return err
		}
		for _, t := range ts {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.ID, t.Name)
		}
		return nil
	},
}

var templatesImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import templates from a YAML list of {name, prompt}",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		repo, err := openRepository(cmd.Context())
		if err != nil {
			return err
		}
		defer repo.KV().Close()

		n, err := offlineAdmin(repo).ImportTemplates(cmd.Context(), f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d templates\n", n)
		return nil
	},
}

func init() {
	instructionSetCmd.Flags().StringVarP(&instructionFile, "file", "f", "", "read the instruction from a file")
	instructionCmd.AddCommand(instructionShowCmd, instructionSetCmd, instructionClearCmd)
	templatesCmd.AddCommand(templatesListCmd, templatesImportCmd)
}

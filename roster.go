package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/d1nch8g/dialcoach/contacts"
	"github.com/spf13/cobra"
)

func newContactsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contacts",
		Short: "List the prospects you can call",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := contacts.Load()
			if err != nil {
				return err
			}
			return printContacts(cmd.OutOrStdout(), list)
		},
	}
}

func printContacts(w io.Writer, list []contacts.Contact) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCOMPANY\tROLE\tDIFFICULTY\tOBJECTIVES")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Name, c.Company, c.Role, c.Difficulty, strings.Join(c.Objectives, ", "))
	}
	return tw.Flush()
}

// Copyright (c) 2025 Bob Vawter (bob@vawter.org)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"vawter.tech/avemu/pkg/library"
)

// Command is an entrypoint to list the supported device models.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Args:  cobra.NoArgs,
		Short: "list supported device models",
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := library.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Models supported by avemu:")
			fmt.Fprintln(out)
			for _, key := range keys {
				fmt.Fprintf(out, "  %-30s %s\n", key, strings.ReplaceAll(key, "/", "_"))
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Either spelling is accepted by --model.")
			return nil
		},
	}
}

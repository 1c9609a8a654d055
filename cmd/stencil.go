/*
Copyright © 2024 The conduction Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/notargets/conduction/stencil"
)

// StencilCmd represents the stencil command
var StencilCmd = &cobra.Command{
	Use:   "stencil",
	Short: "Print the neighbour closure of a stencil",
	Long: `
Lists the closure entries of a finite difference stencil as padded windows
and as neighbour offsets, widest level first and the center last.

conduction stencil --dim 2 --width 2`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			dim, width, pad int
		)
		dim, _ = cmd.Flags().GetInt("dim")
		width, _ = cmd.Flags().GetInt("width")
		pad, _ = cmd.Flags().GetInt("pad")
		if pad == 0 {
			pad = width
		}
		return PrintStencil(cmd.OutOrStdout(), dim, width, pad)
	},
}

func init() {
	rootCmd.AddCommand(StencilCmd)
	StencilCmd.Flags().IntP("dim", "d", 1, "number of dimensions, 1 to 3")
	StencilCmd.Flags().IntP("width", "w", 1, "stencil width")
	StencilCmd.Flags().Int("pad", 0, "array padding, defaults to the width")
}

func PrintStencil(w io.Writer, dim, width, pad int) (err error) {
	var (
		c stencil.Closure
	)
	if c, err = stencil.NewPadded(dim, width, pad); err != nil {
		return
	}
	fmt.Fprintf(w, "%d entries, dim %d, width %d, pad %d\n", len(c), dim, width, pad)
	offsets := c.Offsets(pad)
	for i, e := range c {
		fmt.Fprintf(w, "[%2d] window %v offset %v\n", i, []stencil.Pair(e), offsets[i])
	}
	return
}

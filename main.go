// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// ramsesd - RAMSES-II heating gateway
//
// A CLI tool that attaches to a USB radio adapter (HGI80 or evofw3) and
// exposes the heating system's entity graph together with a command-issuing
// API with delivery guarantees.

package main

import (
	"fmt"
	"os"

	"github.com/ctr/ramses-rf/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

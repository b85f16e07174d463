/* Copyright (c) 2025 The delivery-dash authors
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "fmt"
    "os"
)

func main() {
    if err := rootCmd.Execute(); err != nil {
        fmt.Fprintln(os.Stderr, err)
        os.Exit(1)
    }
}

package main

import "time"

const defaultTestTimeout = 30 * time.Second

// ConvertFlags holds flags for the convert command
type ConvertFlags struct {
	OutputDir string
	Verbose   bool
}

// TestFlags holds flags for the test command
type TestFlags struct {
	Mode    string // list | describe | call
	Tool    string
	Args    string // tool arguments as JSON
	Timeout time.Duration
	Verbose bool
}

// RunFlags holds flags for the run command
type RunFlags struct {
	MetricsAddr string
	HistoryDSN  string
}

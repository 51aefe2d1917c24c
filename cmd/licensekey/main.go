package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"tattty/pkg/licensekey"
)

func main() {
	var (
		countFlag  int
		checkFlag  string
		formatFlag string
	)
	flag.IntVar(&countFlag, "n", 1, "number of license keys to generate")
	flag.StringVar(&checkFlag, "check", "", "validate the given key instead of generating")
	flag.StringVar(&formatFlag, "format", "", "print the normalised form of the given input")
	flag.Parse()

	switch {
	case strings.TrimSpace(formatFlag) != "":
		formatted := licensekey.Format(formatFlag)
		if formatted == "" {
			fmt.Fprintf(os.Stderr, "nothing to format in %q\n", formatFlag)
			os.Exit(1)
		}
		fmt.Println(formatted)
		return
	case strings.TrimSpace(checkFlag) != "":
		key := licensekey.Format(checkFlag)
		if !licensekey.Valid(key) {
			fmt.Fprintf(os.Stderr, "invalid license key %q\n", checkFlag)
			os.Exit(1)
		}
		fmt.Printf("%s is well formed\n", key)
		return
	}

	if countFlag <= 0 || countFlag > 1000 {
		fmt.Fprintln(os.Stderr, "-n must be between 1 and 1000")
		os.Exit(1)
	}
	for i := 0; i < countFlag; i++ {
		key, err := licensekey.Generate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate license key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(key)
	}
}

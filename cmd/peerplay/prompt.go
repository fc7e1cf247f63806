package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var stdin = bufio.NewReader(os.Stdin)

// promptIndex asks the user to pick a 1-based entry; 0 or empty aborts.
func promptIndex(label string, max int) (int, error) {
	for {
		fmt.Printf("%s [1-%d, 0 to cancel]: ", label, max)
		line, err := stdin.ReadString('\n')
		if err != nil {
			return 0, err
		}
		line = strings.TrimSpace(line)
		if line == "" || line == "0" {
			return 0, nil
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > max {
			fmt.Println("invalid choice")
			continue
		}
		return n, nil
	}
}

func promptInt(label string, fallback int) (int, error) {
	fmt.Printf("%s [%d]: ", label, fallback)
	line, err := stdin.ReadString('\n')
	if err != nil {
		return 0, err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid number %q", line)
	}
	return n, nil
}

func promptString(label, fallback string) (string, error) {
	if fallback != "" {
		fmt.Printf("%s [%s]: ", label, fallback)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, err := stdin.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return fallback, nil
	}
	return line, nil
}

package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/jonwingfield/reefmon/internal/model"
	"github.com/jonwingfield/reefmon/internal/pinctrl"
	"github.com/jonwingfield/reefmon/internal/store"
)

func main() {
	DebugCLI()
}

func DebugCLI() {
	var dbPath, command, section, body, file string
	flag.StringVar(&dbPath, "db", "data/reefmon.db", "Path to the SQLite settings database")
	flag.StringVar(&command, "cmd", "", "Command to run: show, set-section, seed, pins")
	flag.StringVar(&section, "section", "", "Settings section: temperature, depth, lighting, doser")
	flag.StringVar(&body, "json", "", "Section body as JSON")
	flag.StringVar(&file, "file", "", "Read the section body from this file")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help || command == "" {
		fmt.Println("\nUsage of reefmon-debug:")
		fmt.Println("  -db string\tPath to the SQLite settings database (default 'data/reefmon.db')")
		fmt.Println("  -cmd string\tCommand to run: show, set-section, seed, pins")
		fmt.Println("  -section string\tSettings section for show and set-section")
		fmt.Println("  -json string\tSection body as JSON")
		fmt.Println("  -file string\tRead the section body from this file")
		fmt.Println("  -help\tShow this help message")
		os.Exit(0)
	}

	var err error
	switch command {
	case "show":
		err = show(dbPath, section)
	case "set-section":
		if section == "" {
			fmt.Println("Error: section is required")
			os.Exit(1)
		}
		if file != "" {
			b, readErr := os.ReadFile(file)
			if readErr != nil {
				fmt.Printf("Error: %v\n", readErr)
				os.Exit(1)
			}
			body = string(b)
		}
		if body == "" {
			fmt.Println("Error: -json or -file is required")
			os.Exit(1)
		}
		err = setSection(dbPath, store.Section(section), []byte(body))
	case "seed":
		err = seed(dbPath)
	case "pins":
		err = pins()
	default:
		fmt.Println("Invalid command")
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Command %s failed: %v\n", command, err)
		os.Exit(1)
	}
	fmt.Printf("Command %s completed successfully\n", command)
}

func show(dbPath, only string) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, sec := range store.Sections {
		if only != "" && string(sec) != only {
			continue
		}
		raw, version, err := s.Get(sec)
		if err != nil {
			fmt.Printf("%-12s (not stored)\n", sec)
			continue
		}
		fmt.Printf("%-12s v%d %s\n", sec, version, raw)
	}
	return nil
}

// setSection writes through the store so the running daemon picks the change
// up on its next settings poll.
func setSection(dbPath string, sec store.Section, body []byte) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Set(sec, body)
}

func seed(dbPath string) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Seed(model.DefaultSettings())
}

func pins() error {
	states, err := pinctrl.ReadAllPins()
	if err != nil {
		return err
	}
	nums := make([]int, 0, len(states))
	for n := range states {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, n := range nums {
		p := states[n]
		fmt.Printf("GPIO%-3d %-3s %-3s %-3s %s\n", p.Pin, p.Mode, p.Pull, p.Level, p.Comment)
	}
	return nil
}

package console

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user interrupts a prompt.
var ErrAborted = errors.New("aborted")

func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, ErrAborted)
}

func wrapPromptError(err error) error {
	if err == nil {
		return nil
	}
	if IsAborted(err) {
		return ErrAborted
	}
	return err
}

// Confirm asks a yes/no question; anything but y/yes is a no.
func Confirm(label string) (bool, error) {
	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	result, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, wrapPromptError(err)
	}
	r := strings.ToLower(strings.TrimSpace(result))
	return r == "y" || r == "yes", nil
}

// Input prompts for a non-empty line of text.
func Input(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Validate: func(in string) error {
			if strings.TrimSpace(in) == "" {
				return errors.New("value is required")
			}
			return nil
		},
	}
	result, err := p.Run()
	return strings.TrimSpace(result), wrapPromptError(err)
}

// SelectIndex shows a menu and returns the chosen item's index.
func SelectIndex(label string, items []string) (int, error) {
	p := promptui.Select{
		Label: label,
		Items: items,
		Size:  10,
	}
	i, _, err := p.Run()
	return i, wrapPromptError(err)
}

// SelectMany reads a selection such as "1,3,5-7" or "all" against a list of
// n numbered items.
func SelectMany(label string, n int) ([]int, error) {
	p := promptui.Prompt{
		Label: label,
		Validate: func(in string) error {
			_, err := ParseSelection(in, n)
			return err
		},
	}
	result, err := p.Run()
	if err != nil {
		return nil, wrapPromptError(err)
	}
	return ParseSelection(result, n)
}

// ParseSelection turns a comma-separated list of 1-based numbers and ranges
// into sorted, deduplicated 0-based indexes. "all" selects every item.
func ParseSelection(in string, n int) ([]int, error) {
	in = strings.TrimSpace(in)
	if in == "" {
		return nil, errors.New("empty selection")
	}
	if strings.EqualFold(in, "all") {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	seen := make(map[int]struct{})
	for _, part := range strings.Split(in, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi := part, part
		if a, b, ok := strings.Cut(part, "-"); ok {
			lo, hi = strings.TrimSpace(a), strings.TrimSpace(b)
		}
		from, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", lo)
		}
		to, err := strconv.Atoi(hi)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", hi)
		}
		if from > to {
			from, to = to, from
		}
		if from < 1 || to > n {
			return nil, fmt.Errorf("selection %s out of range 1-%d", part, n)
		}
		for i := from; i <= to; i++ {
			seen[i-1] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, errors.New("empty selection")
	}
	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}

// Pick returns the items at the given indexes.
func Pick(items []string, idx []int) []string {
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, items[i])
	}
	return out
}

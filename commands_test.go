package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func queueViewText(c Container) string {
	var sb strings.Builder
	for _, part := range c.Components {
		if td, ok := part.(TextDisplay); ok {
			sb.WriteString(td.Content)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func queueViewButtons(c Container) ([]Button, bool) {
	for _, part := range c.Components {
		if row, ok := part.(ActionRow); ok {
			buttons := make([]Button, 0, len(row.Components))
			for _, rc := range row.Components {
				if b, ok := rc.(Button); ok {
					buttons = append(buttons, b)
				}
			}
			return buttons, true
		}
	}
	return nil, false
}

func TestBuildQueueContainerPaging(t *testing.T) {
	items := makeItems(
		"t01", "t02", "t03", "t04", "t05", "t06", "t07", "t08", "t09", "t10",
		"t11", "t12", "t13", "t14", "t15", "t16", "t17", "t18", "t19", "t20",
		"t21", "t22", "t23", "t24", "t25",
	)

	first := BuildQueueContainer(nil, items, 0)
	text := queueViewText(first)
	if !strings.Contains(text, "`1.` [t01](") || !strings.Contains(text, "`10.` [t10](") {
		t.Fatalf("first page missing entries:\n%s", text)
	}
	if strings.Contains(text, "t11") {
		t.Fatalf("first page leaked the next page:\n%s", text)
	}
	buttons, ok := queueViewButtons(first)
	if !ok || len(buttons) != 3 {
		t.Fatalf("pagination row missing: %v", buttons)
	}
	if !buttons[0].Disabled {
		t.Fatal("previous button enabled on the first page")
	}
	if buttons[2].Disabled || buttons[2].CustomID != "queue:page:1" {
		t.Fatalf("next button wrong: %+v", buttons[2])
	}
	if buttons[1].Label != "1/3" {
		t.Fatalf("page indicator %q, want 1/3", buttons[1].Label)
	}

	last := BuildQueueContainer(nil, items, 2)
	text = queueViewText(last)
	if !strings.Contains(text, "`21.` [t21](") || !strings.Contains(text, "`25.` [t25](") {
		t.Fatalf("last page missing entries:\n%s", text)
	}
	buttons, _ = queueViewButtons(last)
	if !buttons[2].Disabled {
		t.Fatal("next button enabled on the last page")
	}
	if buttons[0].Disabled || buttons[0].CustomID != "queue:page:1" {
		t.Fatalf("previous button wrong: %+v", buttons[0])
	}

	// Out-of-range pages clamp instead of rendering emptiness.
	clamped := BuildQueueContainer(nil, items, 99)
	if got := queueViewText(clamped); !strings.Contains(got, "`25.` [t25](") {
		t.Fatalf("overshoot did not clamp to the last page:\n%s", got)
	}
	if got := queueViewText(BuildQueueContainer(nil, items, -4)); !strings.Contains(got, "`1.` [t01](") {
		t.Fatalf("undershoot did not clamp to the first page:\n%s", got)
	}
}

func TestBuildQueueContainerSmallQueue(t *testing.T) {
	items := makeItems("only")
	c := BuildQueueContainer(&items[0], items, 0)

	if _, ok := queueViewButtons(c); ok {
		t.Fatal("single page grew pagination buttons")
	}
	text := queueViewText(c)
	if !strings.Contains(text, "Now Playing") {
		t.Fatalf("current track missing:\n%s", text)
	}

	empty := BuildQueueContainer(nil, nil, 0)
	if text := queueViewText(empty); !strings.Contains(text, "_Empty_") {
		t.Fatalf("empty queue not rendered as empty:\n%s", text)
	}
}

func TestUserFacingErrorMatchesWrappedSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNothingPlaying, MsgCmdNothingPlaying},
		{fmt.Errorf("skip: %w", ErrNothingPlaying), MsgCmdNothingPlaying},
		{fmt.Errorf("shuffle: %w", ErrEmptyQueue), MsgCmdShuffleTooShort},
		{fmt.Errorf("move: %w", ErrInvalidPosition), MsgCmdInvalidPosition},
		{errors.New("resolver exploded"), "Failed: resolver exploded"},
	}
	for _, tc := range cases {
		if got := userFacingError(tc.err); got != tc.want {
			t.Errorf("userFacingError(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

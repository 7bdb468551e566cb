package ui

// Layout constants for the single-column chat panel.
const (
	HeaderHeight  = 1
	InputHeight   = 3 // bordered single-line input
	FooterHeight  = 1
	CaptionHeight = 1

	// TableChrome is the border plus the header row and its underline.
	TableChrome = 4

	BoxBorderWidth    = 2
	BoxPaddingH       = 1
	MinViewportHeight = 3
	MinTerminalWidth  = 20

	// BubbleRatio is the share of the content width a message bubble may use.
	BubbleRatio = 0.75
)

// PanelLayout is the computed size of each region for one terminal size.
type PanelLayout struct {
	Width          int
	ContentWidth   int // inside a bordered box
	ViewportHeight int
	TableHeight    int // visible body rows, 0 when hidden
	BubbleWidth    int
}

// ComputeLayout splits height between the message viewport and the results
// table. The table gets up to maxTableRows body rows but never pushes the
// viewport below MinViewportHeight.
func ComputeLayout(width, height, tableRows, maxTableRows int, caption bool) PanelLayout {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	l := PanelLayout{
		Width:        width,
		ContentWidth: width - BoxBorderWidth - BoxPaddingH*2,
	}
	l.BubbleWidth = max(int(float64(l.ContentWidth)*BubbleRatio), 10)

	avail := height - HeaderHeight - InputHeight - FooterHeight
	if tableRows > 0 && maxTableRows > 0 {
		chrome := TableChrome
		if caption {
			chrome += CaptionHeight
		}
		rows := min(tableRows, maxTableRows)
		if spare := avail - MinViewportHeight - chrome; rows > spare {
			rows = spare
		}
		if rows >= 1 {
			l.TableHeight = rows
			avail -= rows + chrome
		}
	}
	l.ViewportHeight = max(avail, MinViewportHeight)
	return l
}

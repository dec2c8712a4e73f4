package cognition

import (
	"fmt"
	"strings"
)

// DefaultPersona is the system instruction sent with every request.
const DefaultPersona = `You are MediPilot, a meticulous medical data-entry assistant operating a hospital EMR on behalf of a clinician.
You never invent values. You only act on what is visible in the screenshot and the task context.
You always answer with exactly one JSON object and nothing else.`

// operationPrompt asks for the next UI action.
func operationPrompt(taskContext string, width, height int, gridCell int) string {
	var b strings.Builder
	b.WriteString("# Context\n")
	b.WriteString("You are controlling the EMR data-entry screen shown in the attached screenshot.\n")
	fmt.Fprintf(&b, "The screenshot is %dx%d pixels; (0,0) is the top-left corner.\n", width, height)
	if gridCell > 0 {
		fmt.Fprintf(&b, "A red grid of %dpx cells is drawn over it. Columns are lettered (A, B, ... Z, AA, ...) left to right and rows are numbered from 0 top to bottom, so the top-left cell is \"A0\" and each cell has a label such as \"B4\".\n", gridCell)
	}
	b.WriteString("\n# Task\n")
	b.WriteString(strings.TrimSpace(taskContext))
	b.WriteString("\n\n# Execution steps\n")
	b.WriteString("1. Find the input field for the next value that has not been entered yet.\n")
	b.WriteString("2. Work out the pixel centre of that field")
	if gridCell > 0 {
		b.WriteString(", using the grid labels to locate it")
	}
	b.WriteString(".\n")
	b.WriteString("3. Use \"type\" with that coordinate to focus the field and enter the value. Use \"click\" only for buttons or tabs.\n")
	b.WriteString("4. Use \"scroll\" when the field is off-screen and \"wait\" when the page is still loading.\n")
	b.WriteString("5. When every value has been entered, answer with \"finish\".\n")
	b.WriteString("\n# Output format (JSON)\n")
	b.WriteString(`{
  "thought": "The WBC field is the empty box in cell B4.",
  "action": "click" | "type" | "scroll" | "wait" | "finish",
  "coordinate": [x, y],
  "text": "value to type",
  "amount": -500,
  "duration": 2,
  "reasoning": "Enter the WBC value."
}`)
	b.WriteString("\n\n# Constraints\n")
	b.WriteString("- coordinate is required for click and type. It may be [x, y] in screenshot pixels")
	if gridCell > 0 {
		b.WriteString(" or a grid label string such as \"B4\" meaning the centre of that cell")
	}
	b.WriteString(".\n")
	b.WriteString("- text must contain only the value, without its unit.\n")
	b.WriteString("- amount (scroll) and duration in seconds (wait) are optional.\n")
	b.WriteString("- Never type into a field that already shows the correct value.\n")
	return b.String()
}

// extractionPrompt asks for the lab values visible on the source report.
func extractionPrompt(metrics []string) string {
	var b strings.Builder
	b.WriteString("# Context\n")
	b.WriteString("The attached screenshot shows a laboratory report, possibly with a red reference grid drawn over it.\n")
	b.WriteString("\n# Goal\n")
	b.WriteString("Extract the structured results below so they can be entered into the EMR.\n")
	b.WriteString("\n# Target metrics\n")
	for i, m := range metrics {
		fmt.Fprintf(&b, "%d. %s\n", i+1, m)
	}
	b.WriteString("\n# Output format (strict JSON)\n")
	b.WriteString(`{
  "findings": [
    {"metric": "WBC", "value": "7.2", "unit": "10^9/L", "target_field_hint": "white blood cell", "confidence": 0.95}
  ],
  "scan_quality": "good"
}`)
	b.WriteString("\n\n# Constraints\n")
	b.WriteString("- value holds the number only, without its unit.\n")
	b.WriteString("- metric must use exactly the abbreviations listed above.\n")
	b.WriteString("- Lower confidence for any value that is blurred or ambiguous; omit values you cannot read at all.\n")
	b.WriteString("- Do not include an \"action\" field.\n")
	return b.String()
}

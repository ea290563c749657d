package deps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stemforge/internal/services/cmdexec"
)

// CheckPythonModule reports whether python can import module.
func CheckPythonModule(ctx context.Context, python, module string) Status {
	result := Status{
		Name:        "Python module " + module,
		Command:     strings.TrimSpace(python),
		Description: "Stem separation model",
	}
	if result.Command == "" {
		result.Detail = "python binary not configured"
		return result
	}
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tail := cmdexec.NewTail(5)
	err := cmdexec.Command{}.Run(checkCtx, result.Command, []string{"-c", "import " + module}, tail.Add)
	if err != nil {
		detail := tail.LastMatching("Error")
		if detail == "" {
			detail = err.Error()
		}
		result.Detail = fmt.Sprintf("import %s failed: %s", module, detail)
		return result
	}
	result.Available = true
	return result
}

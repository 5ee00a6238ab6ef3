/**
 * @description
 * Structured logger for the SoleStack Backend.
 * Ensures info messages go to stdout (not stderr) so the hosting platform doesn't label them as errors.
 *
 * @dependencies
 * - standard "os"
 * - standard "log"
 * - standard "fmt"
 */

package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

var (
	// InfoLogger writes to stdout
	InfoLogger *log.Logger
	// ErrorLogger writes to stderr (for actual errors)
	ErrorLogger *log.Logger
)

func init() {
	InfoLogger = log.New(os.Stdout, "", 0)
	ErrorLogger = log.New(os.Stderr, "", 0)
}

// Info logs an info message to stdout
func Info(format string, v ...interface{}) {
	message := fmt.Sprintf(format, v...)
	InfoLogger.Println(message)
}

// Error logs an error message to stderr
func Error(format string, v ...interface{}) {
	message := fmt.Sprintf(format, v...)
	ErrorLogger.Println(message)
}

// Fatal logs an error and exits
func Fatal(format string, v ...interface{}) {
	message := fmt.Sprintf(format, v...)
	ErrorLogger.Fatalln(message)
}

// New creates a new logger that writes to the specified writer
func New(w io.Writer) *log.Logger {
	return log.New(w, "", 0)
}

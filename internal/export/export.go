package export

import (
	"bufio"
	"io"
	"strings"

	"github.com/JNickson/kubelog-viewer/internal/stream"
)

// Filename builds the download name for a session's visible log.
func Filename(cluster, namespace, entity string) string {
	return strings.Join([]string{cluster, namespace, entity}, "-") + ".txt"
}

// Write writes the text of each message on its own line.
func Write(w io.Writer, msgs []stream.Message) error {
	bw := bufio.NewWriter(w)
	for _, m := range msgs {
		if _, err := bw.WriteString(m.Text); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Package message renders the operator-configured texts that ingestflow
// posts: review request bodies, failure issues, comment annotations and
// chat notifications.
//
// Templates come from configuration; a few optional ones have embedded
// defaults. Both Go template syntax and single-brace placeholders work:
//
//	r := message.NewRenderer(map[string]string{
//	    message.Staged: "{date}: tarball {tarball} staged",
//	})
//	line, err := r.Render(message.Staged, map[string]any{
//	    "date":    time.Now().UTC().Format(message.DateFormat),
//	    "tarball": "x.tar.gz",
//	})
//
// In single-brace texts "{{" and "}}" stand for literal braces.
//
// Available functions: trim, upper, lower, title, indent, default,
// bytes (humanized size), base (last path segment).
package message

// Package errors turns trackerkit failures into user-facing messages.
//
// Classify maps any error returned by the jira, http, auth, config or schema
// packages to a Kind. Wrap builds a CLIError from that Kind with a message, a
// suggestion and the server's own explanation as details:
//
//	issue, err := client.GetIssue(ctx, key)
//	if err != nil {
//	    return errors.Wrap(err, errors.WithServer(cfg.URL))
//	}
//
// A CLIError unwraps to both its kind sentinel and the original cause:
//
//	errors.Is(err, errors.ErrNotFound)      // true
//	errors.Is(err, trackerhttp.ErrNotFound) // also true
//
// Messages can be replaced by implementing ErrorMessenger:
//
//	type myMessenger struct{ errors.DefaultMessenger }
//
//	func (myMessenger) AuthErrorMessage(string) (string, string) {
//	    return "Login required.", "Run 'trackerctl profile use <name>'."
//	}
//
//	wrapped := errors.Wrap(err, errors.WithMessenger(myMessenger{}))
package errors

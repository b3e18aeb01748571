// Package browser drives the Chromium session the assistant runs in.
//
// A Manager owns the Playwright driver. It launches a persistent context so
// the webmail login survives restarts. The Session it returns injects the
// page runtime into every page and routes page events to per-page handlers.
//
// # Page runtime
//
// The runtime is a small script added with AddInitScript. It reports two
// kinds of events back to Go through exposed functions:
//
//   - __mailwrightMutated(added): a mutation burst added nodes
//   - __mailwrightDispatch(root, action, tone): a control was clicked, or a
//     click landed outside every control while a tone menu was open
//
// Both callbacks only hand the event to the page handler. All DOM work
// happens later on the handler's own goroutine.
//
// # Page lifecycle
//
// A handler is bound when a document loads and rebound when a same-document
// navigation leaves the URLs it serves. Page close and context close stop it.
//
// # Example Usage
//
//	manager := browser.NewManager(log)
//	if err := manager.Initialize(); err != nil {
//	    return err
//	}
//	defer manager.Shutdown()
//
//	session, err := manager.Launch(browser.SessionOptions{UserDataDir: dir})
//	if err != nil {
//	    return err
//	}
//	session.Serve(binder)
//	err = session.Navigate("https://mail.google.com/")
//	<-session.Done()
package browser

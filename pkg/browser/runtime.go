package browser

import (
	"math"
)

// Names of the functions the page runtime calls.
const (
	BindingMutated  = "__mailwrightMutated"
	BindingDispatch = "__mailwrightDispatch"
)

// RuntimeScript is injected into every document before host scripts run.
const RuntimeScript = `(() => {
  if (window.__mailwrightRuntime) return;
  window.__mailwrightRuntime = true;

  const call = (name, ...args) => {
    const fn = window[name];
    if (typeof fn !== 'function') return;
    try { fn(...args); } catch (e) {}
  };

  const observe = () => {
    const target = document.documentElement;
    if (!target) return false;
    new MutationObserver((records) => {
      let added = 0;
      for (const r of records) added += r.addedNodes.length;
      if (added > 0) call('` + BindingMutated + `', added);
    }).observe(target, { childList: true, subtree: true });
    return true;
  };
  if (!observe()) document.addEventListener('DOMContentLoaded', observe, { once: true });

  document.addEventListener('click', (event) => {
    const target = event.target instanceof Element ? event.target : null;
    const root = target && target.closest('[data-mailwright-root]');
    if (!root) {
      if (document.querySelector('[data-mailwright-menu]:not([hidden])')) {
        call('` + BindingDispatch + `', '', 'dismiss', '');
      }
      return;
    }
    const action = target.closest('[data-mailwright-action]');
    if (!action || !root.contains(action)) return;
    event.preventDefault();
    event.stopPropagation();
    call('` + BindingDispatch + `',
      root.getAttribute('data-mailwright-root') || '',
      action.getAttribute('data-mailwright-action') || '',
      action.getAttribute('data-mailwright-tone') || '');
  }, true);
})();`

// intArg decodes a numeric runtime call argument.
func intArg(args []interface{}, i int) int {
	if i >= len(args) {
		return 0
	}
	switch v := args[i].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if math.IsNaN(v) {
			return 0
		}
		return int(v)
	}
	return 0
}

func stringArg(args []interface{}, i int) string {
	if i >= len(args) {
		return ""
	}
	s, _ := args[i].(string)
	return s
}

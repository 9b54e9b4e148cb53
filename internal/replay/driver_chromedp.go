package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"loginflow/backend/internal/models"
	"loginflow/backend/internal/resolver"
)

// ChromeDriver drives a live page through a chromedp context.
type ChromeDriver struct{}

func NewChromeDriver() *ChromeDriver {
	return &ChromeDriver{}
}

func (d *ChromeDriver) Resolve(ctx context.Context, action models.Action, timeout time.Duration) (string, error) {
	return resolver.Resolve(ctx, action, timeout)
}

func (d *ChromeDriver) ScrollIntoView(ctx context.Context, sel string) error {
	return chromedp.Run(ctx, chromedp.ScrollIntoView(sel, chromedp.ByQuery))
}

// clickScript focuses the element and replays a realistic pointer sequence
// at its visual center, finishing with the native click() since some
// handlers are bound to only one of the event types.
const clickScript = `(() => {
	const pick = (sel) => {
		const nodes = document.querySelectorAll(sel);
		for (const n of nodes) {
			if (n.getClientRects().length > 0) return n;
		}
		return nodes[0] || null;
	};
	const el = pick(%s);
	if (!el) return 'element vanished before click';
	const rect = el.getBoundingClientRect();
	const x = rect.left + rect.width / 2;
	const y = rect.top + rect.height / 2;
	el.focus();
	const opts = { bubbles: true, cancelable: true, view: window, clientX: x, clientY: y };
	el.dispatchEvent(new PointerEvent('pointerdown', opts));
	el.dispatchEvent(new MouseEvent('mousedown', opts));
	el.dispatchEvent(new PointerEvent('pointerup', opts));
	el.dispatchEvent(new MouseEvent('mouseup', opts));
	el.dispatchEvent(new MouseEvent('click', opts));
	el.click();
	return '';
})()`

func (d *ChromeDriver) Click(ctx context.Context, sel string) error {
	return d.eval(ctx, fmt.Sprintf(clickScript, jsString(sel)))
}

// setValueScript writes through the framework-bypassing native property
// setter. React and friends intercept the reflected value setter, so
// assigning el.value directly leaves their bound state stale; the prototype
// setter plus input/change events keeps them in sync. The field is cleared
// first so replay overwrites any autofilled value rather than appending.
const setValueScript = `(() => {
	const pick = (sel) => {
		const nodes = document.querySelectorAll(sel);
		for (const n of nodes) {
			if (n.getClientRects().length > 0) return n;
		}
		return nodes[0] || null;
	};
	const el = pick(%s);
	if (!el) return 'element vanished before input';
	el.focus();
	const fire = () => {
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
	};
	if (el.isContentEditable) {
		el.textContent = '';
		fire();
		el.textContent = %s;
		fire();
		return '';
	}
	const proto = el instanceof HTMLTextAreaElement
		? HTMLTextAreaElement.prototype
		: HTMLInputElement.prototype;
	const desc = Object.getOwnPropertyDescriptor(proto, 'value');
	const set = desc && desc.set ? (v) => desc.set.call(el, v) : (v) => { el.value = v; };
	set('');
	fire();
	set(%s);
	fire();
	return '';
})()`

func (d *ChromeDriver) SetValue(ctx context.Context, sel, value string) error {
	v := jsString(value)
	return d.eval(ctx, fmt.Sprintf(setValueScript, jsString(sel), v, v))
}

// pressEnterScript sends the Enter key triplet and, when the element sits in
// a form, requests a submission. requestSubmit runs the form's submit
// handlers and validation; plain submit() is the fallback where the richer
// API is missing.
const pressEnterScript = `(() => {
	const pick = (sel) => {
		const nodes = document.querySelectorAll(sel);
		for (const n of nodes) {
			if (n.getClientRects().length > 0) return n;
		}
		return nodes[0] || null;
	};
	const el = pick(%s);
	if (!el) return 'element vanished before enter';
	el.focus();
	const opts = { bubbles: true, cancelable: true, key: 'Enter', code: 'Enter', keyCode: 13, which: 13 };
	el.dispatchEvent(new KeyboardEvent('keydown', opts));
	el.dispatchEvent(new KeyboardEvent('keypress', opts));
	el.dispatchEvent(new KeyboardEvent('keyup', opts));
	const form = el.form || el.closest('form');
	if (form) {
		if (typeof form.requestSubmit === 'function') {
			form.requestSubmit();
		} else {
			form.submit();
		}
	}
	return '';
})()`

func (d *ChromeDriver) PressEnter(ctx context.Context, sel string) error {
	return d.eval(ctx, fmt.Sprintf(pressEnterScript, jsString(sel)))
}

// toastScript mirrors the on-page notification the recording overlay uses.
const toastScript = `(() => {
	try {
		const n = document.createElement('div');
		n.textContent = %s;
		n.style.cssText = 'position:fixed;top:10px;right:10px;background:#10b981;color:#fff;' +
			'padding:12px 20px;border-radius:8px;font:14px -apple-system,sans-serif;z-index:999999;';
		document.body.appendChild(n);
		setTimeout(() => n.remove(), 4000);
	} catch (e) {}
	return '';
})()`

func (d *ChromeDriver) Notify(ctx context.Context, message string) {
	_ = d.eval(ctx, fmt.Sprintf(toastScript, jsString(message)))
}

// eval runs a script returning '' on success or an error description.
func (d *ChromeDriver) eval(ctx context.Context, script string) error {
	var failure string
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &failure)); err != nil {
		return fmt.Errorf("dispatch failed: %w", err)
	}
	if failure != "" {
		return fmt.Errorf("dispatch failed: %s", failure)
	}
	return nil
}

// jsString renders a Go string as a safely quoted JS string literal.
func jsString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

package capture

// captureScript is injected into the recorded page. It is a guarded install:
// evaluating it again after a navigation re-creates the listeners and the
// overlay without doubling them up on a page where they already exist.
//
// Listeners attach in the capture phase so nested framework handlers cannot
// swallow an event before it is recorded. Events originating inside the
// recorder's own overlay are excluded. Raw events buffer in the page and are
// drained by the Go side; each carries an element snapshot from which Go
// synthesizes the selector candidates.
const captureScript = `
(function() {
	if (window.__loginflowCapture) return;

	const OVERLAY_ID = 'loginflow-recording';

	const pathOf = (el) => {
		const path = [];
		let node = el;
		while (node && node.nodeType === Node.ELEMENT_NODE && node.tagName !== 'BODY' && path.length < 5) {
			const tag = node.tagName.toLowerCase();
			let nth = 0, same = 0;
			if (node.parentElement) {
				for (const sib of node.parentElement.children) {
					if (sib.tagName === node.tagName) {
						same++;
						if (sib === node) nth = same;
					}
				}
			} else {
				nth = 1;
				same = 1;
			}
			path.push({ tag: tag, id: node.id || '', nth_of_type: nth, same_tag_siblings: same });
			node = node.parentElement;
		}
		return path;
	};

	const snapshot = (el) => ({
		tag: (el.tagName || '').toLowerCase(),
		id: el.id || '',
		name: el.getAttribute('name') || '',
		type: el.getAttribute('type') || '',
		placeholder: el.getAttribute('placeholder') || '',
		aria_label: el.getAttribute('aria-label') || '',
		data_testid: el.getAttribute('data-testid') || '',
		classes: (el.className && typeof el.className === 'string')
			? el.className.trim().split(/\s+/).filter(Boolean) : [],
		path: pathOf(el)
	});

	const labelOf = (el) => {
		if (el.labels && el.labels.length > 0) return (el.labels[0].textContent || '').trim().slice(0, 80);
		return (el.getAttribute('aria-label') || el.getAttribute('placeholder') || '').slice(0, 80);
	};

	const fieldTypeOf = (el) => {
		if (el.isContentEditable) return 'text';
		const tag = (el.tagName || '').toLowerCase();
		if (tag === 'textarea') return 'text';
		return el.getAttribute('type') || 'text';
	};

	const ownOverlay = (el) => !!(el && el.closest && el.closest('#' + OVERLAY_ID));

	window.__loginflowCapture = {
		events: [],
		drain: function() {
			const out = this.events;
			this.events = [];
			return out;
		},
		setCount: function(n) {
			const counter = document.getElementById(OVERLAY_ID + '-count');
			if (counter) counter.textContent = n + ' action' + (n === 1 ? '' : 's');
		},
		push: function(ev) {
			this.events.push(ev);
		}
	};

	document.addEventListener('click', function(event) {
		if (!event.isTrusted || ownOverlay(event.target)) return;
		window.__loginflowCapture.push({
			type: 'click',
			element: snapshot(event.target),
			label: labelOf(event.target),
			timestamp: Date.now(),
			x: event.clientX,
			y: event.clientY
		});
	}, true);

	document.addEventListener('input', function(event) {
		if (!event.isTrusted || ownOverlay(event.target)) return;
		const el = event.target;
		const tag = (el.tagName || '').toLowerCase();
		const editable = tag === 'input' || tag === 'textarea' || el.isContentEditable;
		if (!editable) return;
		window.__loginflowCapture.push({
			type: 'input',
			element: snapshot(el),
			value: el.isContentEditable ? (el.textContent || '') : (el.value || ''),
			field_type: fieldTypeOf(el),
			label: labelOf(el),
			timestamp: Date.now()
		});
	}, true);

	document.addEventListener('keydown', function(event) {
		if (!event.isTrusted || event.key !== 'Enter' || ownOverlay(event.target)) return;
		window.__loginflowCapture.push({
			type: 'enter',
			element: snapshot(event.target),
			label: labelOf(event.target),
			timestamp: Date.now()
		});
	}, true);

	const overlay = document.createElement('div');
	overlay.id = OVERLAY_ID;
	overlay.innerHTML =
		'<style>' +
		'#' + OVERLAY_ID + '{position:fixed;top:10px;right:10px;background:#1e293b;color:#fff;' +
		'padding:10px 16px;border-radius:10px;font:13px -apple-system,sans-serif;z-index:999999;' +
		'box-shadow:0 4px 20px rgba(0,0,0,.4);display:flex;align-items:center;gap:8px}' +
		'#' + OVERLAY_ID + ' .dot{width:8px;height:8px;background:#ef4444;border-radius:50%;' +
		'animation:lfpulse 1s infinite}' +
		'@keyframes lfpulse{0%,100%{opacity:1}50%{opacity:.5}}' +
		'</style>' +
		'<span class="dot"></span><span>Recording login</span>' +
		'<span id="' + OVERLAY_ID + '-count">0 actions</span>';
	if (document.body) document.body.appendChild(overlay);
})();
`

// drainExpr installs the capture script when missing (a navigation wipes it)
// and returns whatever buffered since the last poll.
const drainExpr = captureScript + `
(function() {
	if (!window.__loginflowCapture) return [];
	return window.__loginflowCapture.drain();
})()
`

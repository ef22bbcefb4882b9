package js

// FIRST_VISIBLE returns the first element matching selector that takes up
// space on the page, or null so rod keeps retrying.
var FIRST_VISIBLE string = `
(selector) => {
    var elements = document.querySelectorAll(selector);
    for (var i = 0, l = elements.length; i < l; i++) {
        var element = elements[i];
        if (element.offsetWidth === 0 && element.offsetHeight === 0) continue;
        if (window.getComputedStyle(element).display === "none") continue;
        return element;
    }
    return null;
}
`

// HAS_TEXT reports whether any text node in the body matches pattern.
var HAS_TEXT string = `
(pattern) => {
    var re = new RegExp(pattern);
    var walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT);
    while (walker.nextNode()) {
        if (re.test(walker.currentNode.textContent)) return true;
    }
    return false;
}
`

// FIND_TEXT returns the trimmed content of the first text node matching
// pattern, or an empty string.
var FIND_TEXT string = `
(pattern) => {
    var re = new RegExp(pattern);
    var walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT);
    while (walker.nextNode()) {
        var text = walker.currentNode.textContent;
        if (re.test(text)) return text.trim();
    }
    return "";
}
`

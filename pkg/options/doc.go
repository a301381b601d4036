// Package options provides named option lists shared between forms, such as
// IANA timezones or country codes. Lists are loaded from plain text files
// with one value per line; a tab separates an optional label. Questions that
// set optionsFrom get their options filled from the registry, and large lists
// can be searched so front ends do not have to ship every choice.
package options

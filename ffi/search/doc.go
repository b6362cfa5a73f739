// Package search compiles wildcard search strings into encoded subqueries.
//
// A query may use '*' (any run of characters), '?' (any one character) and
// '\' to escape either wildcard or itself. Each token of the cleaned query
// can be read as static text, an integer, a float or a dictionary variable;
// a subquery is one combination of those readings.
package search

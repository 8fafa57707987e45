package main

// Message is a one-line notice shown above the page content. Level is a
// bootstrap alert suffix: success, info, warning, danger.
type Message struct {
	Text  string
	Level string
}

type ContextKey string

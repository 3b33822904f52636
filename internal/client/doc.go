// Package client implements the terminal chat client: a line connection to the
// server and a bubbletea model rendering the results it receives.
package client

/*
Package tui is the interactive prediction form.

The form has two inputs: comma-separated expression values and a CSV file
path. While a file path is entered the values input is disabled and the
file is uploaded instead. Submitting goes through the orchestrator, so a
new submission cancels the previous one and only the latest outcome is
shown.

Modals:
  - auth (ctrl+l): login or register; failures show as a blocking alert
  - history (ctrl+h): server history when logged in, plus the local log,
    with fuzzy filtering
  - help (f1)

Keys are resolved through the keybinds registry, so every binding can be
overridden in ~/.genepredict/keybinds.json.
*/
package tui

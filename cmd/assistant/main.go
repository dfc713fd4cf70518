package main

import "github.com/justineyoo1/PDFResearchAssistant/internal/cli"

func main() {
	cli.Execute()
}

package main

func main() {
	rootCmd := newRootCmd()
	err := rootCmd.Execute()

	if globalEngine != nil {
		globalEngine.Close()
	}

	if err != nil {
		exitOnError(err)
	}
}

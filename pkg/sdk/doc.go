// Package manualqa embeds the manual question answering pipeline in a Go
// program: it indexes PDF manuals (or plain text) into an in-memory vector
// store once and answers questions from the most similar excerpts.
//
//	client, err := manualqa.New(ctx,
//	    manualqa.WithOpenAI(os.Getenv("OPENAI_API_KEY")),
//	    manualqa.WithManual("user_manual.pdf", "USER"),
//	    manualqa.WithManual("operator_manual.pdf", "OPERATOR"),
//	    manualqa.WithThreshold(0.6),
//	)
//	if err != nil { ... }
//	defer client.Close()
//
//	ans, err := client.Ask(ctx, "How often should the pressure valve be checked?")
//	if errors.Is(err, manualqa.ErrNoRelevantMatch) {
//	    // the question is unrelated to the manuals
//	}
//
// Custom providers plug in through WithEmbedder and WithCompleter.
package manualqa

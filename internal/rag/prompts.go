package rag

import "fmt"

const qaTemplate = `You are a helpful AI assistant that answers questions based on the provided context.

Use the following pieces of context to answer the question at the end. If you don't know the answer based on the context, say "I don't have enough information to answer that question."

Always cite the source of your information when possible.

Context:
%s

Question: %s

Answer:`

const qaWithSourcesTemplate = `You are a helpful AI assistant that answers questions based on provided context and always cites sources.

Use the following pieces of context to answer the question. Each piece of context has a source identifier.

For your answer:
1. Provide a clear, concise answer to the question
2. Cite which sources (by ID) you used
3. If the context doesn't contain enough information, say so

Context:
%s

Question: %s

Answer (with source citations):`

const conversationalTemplate = `You are a helpful AI assistant having a conversation with a human.

Use the following pieces of context and conversation history to answer the current question.

Conversation History:
%s

Context:
%s

Current Question: %s

Answer:`

func qaPrompt(context, question string) string {
	return fmt.Sprintf(qaTemplate, context, question)
}

func qaWithSourcesPrompt(context, question string) string {
	return fmt.Sprintf(qaWithSourcesTemplate, context, question)
}

func conversationalPrompt(history, context, question string) string {
	return fmt.Sprintf(conversationalTemplate, history, context, question)
}

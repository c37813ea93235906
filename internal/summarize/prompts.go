package summarize

import "fmt"

const briefTemplate = `You are an expert at creating concise summaries of documents.

Given the following document, create a brief summary (2-3 sentences) that captures the most important points:

Document:
%s

Brief Summary:`

const standardTemplate = `You are an expert at creating comprehensive summaries of documents.

Your task is to create a well-structured summary of the following document. The summary should:
- Capture the main ideas and key points
- Maintain the logical flow of the original document
- Be approximately 20-25%% of the original length
- Be written in clear, concise language

Document:
%s

Comprehensive Summary:`

const detailedTemplate = `You are an expert at creating detailed, structured summaries of documents.

Create a detailed summary of the following document with these sections:

1. **Executive Summary**: One paragraph overview
2. **Key Points**: Bullet points of main ideas
3. **Important Details**: Significant facts, figures, and findings
4. **Conclusions/Recommendations**: If applicable

Document:
%s

Detailed Summary:`

const technicalTemplate = `You are an expert at summarizing technical documents.

Create a structured summary of this technical document including:

1. **Purpose/Objective**: What is this document about?
2. **Technical Details**: Key technical information, specifications, or methodologies
3. **Results/Findings**: Main outcomes or conclusions
4. **Action Items**: Any recommendations or next steps

Document:
%s

Technical Summary:`

const mapTemplate = `You are creating a summary of a section of a larger document.

Summarize the key points from this section concisely:

%s

Section Summary:`

const reduceTemplate = `You are combining multiple section summaries into a cohesive final summary.

Given these section summaries from a document, create a unified summary that:
- Combines and synthesizes the information
- Eliminates redundancy
- Maintains logical flow
- Preserves all important information

Section Summaries:
%s

Final Combined Summary:`

// summaryPrompt picks the template for the requested length and
// document type. Technical documents use the structured technical
// template regardless of length.
func summaryPrompt(text string, length Length, docType DocType) string {
	if docType == DocTypeTechnical {
		return fmt.Sprintf(technicalTemplate, text)
	}
	switch length {
	case LengthBrief:
		return fmt.Sprintf(briefTemplate, text)
	case LengthDetailed:
		return fmt.Sprintf(detailedTemplate, text)
	default:
		return fmt.Sprintf(standardTemplate, text)
	}
}

func mapPrompt(text string) string {
	return fmt.Sprintf(mapTemplate, text)
}

func reducePrompt(text string) string {
	return fmt.Sprintf(reduceTemplate, text)
}

// Package assistant implements the backend's message analysis: assigning a
// category, a short summary and a fraud flag, and drafting replies.
//
// Two implementations sit behind the Classifier and Replier interfaces. The
// keyword classifier and template replier work offline. ModelClassifier and
// ModelReplier prompt a Gemini model through a Generator and fall back to
// fixed answers when the model fails.
package assistant

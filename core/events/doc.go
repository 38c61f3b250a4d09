// Package events defines the typed event contract of a voice session.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - session.*
//   - user_input.*
//   - assistant_response.*
//   - assistant_speech.*
//   - assistant_playback.*
//   - turn_state.*
//
// Semantics used across the package:
//
//   - Segment: append-only text piece emitted in stream order.
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Final: terminal immutable text for the current stream or turn phase.
//   - Ended: lifecycle boundary indicating completion.
//
// session events
//
//   - SessionStateChanged (session.state_changed): the session moved from one
//     state to another.
//   - SessionError (session.error): a fatal failure moved the session into
//     its error state; carries the message meant for the user.
//   - SessionNotice (session.notice): non-fatal information for the user,
//     such as answers being text-only.
//
// user_input events
//
//   - UserTranscriptInterimUpdated (user_input.transcript_interim_updated):
//     mutable interim transcript snapshot while listening.
//   - UserTranscriptFinal (user_input.transcript_final): the question that
//     starts a turn.
//   - UserInputEnded (user_input.ended): capture ended without a question.
//
// assistant_response events
//
//   - AssistantResponseSegment (assistant_response.segment): streamed answer
//     text segment.
//   - AssistantResponseFinal (assistant_response.final): the answer stream is
//     complete; carries the full answer text.
//
// assistant_speech events
//
//   - AssistantSpeechSentenceQueued (assistant_speech.sentence_queued): a
//     complete sentence was handed to speech synthesis.
//
// assistant_playback events
//
//   - AssistantPlaybackSentencePlayed (assistant_playback.sentence_played): a
//     sentence finished playing.
//   - AssistantPlaybackEnded (assistant_playback.ended): every queued sentence
//     of the turn was played or discarded after a synthesis failure.
//
// turn_state events
//
//   - TurnStarted (turn_state.started): a turn started.
//   - TurnCompleted (turn_state.completed): both the answer stream and
//     playback finished.
//   - TurnCancelled (turn_state.cancelled): the turn was cancelled.
//   - TurnFailed (turn_state.failed): the turn ended in the error state.
package events

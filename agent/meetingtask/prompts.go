//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package meetingtask

const analysisPrompt = `You are a meeting assistant. Read the transcript and write the minutes of meeting and the action items.

Meeting metadata:
%s

Rules:
- The summary covers the purpose, the main discussion points and the decisions taken.
- Every action item has a concise title and a description with enough context to act on.
- Assignees must be names from the participant list; use "Unassigned" when nobody was named.
- Use ISO dates (YYYY-MM-DD) for deadlines, resolving relative dates against the meeting date.
- Priority is one of Low, Medium, High or Urgent.

Transcript:
%s`

const reflectionPrompt = `You review meeting minutes for quality before tasks are created from them.

Meeting metadata:
%s

Minutes:
%s

Action items:
%s

Check that the minutes are accurate and complete, that every commitment in the meeting has an
action item, that assignees are real participants and that deadlines and priorities are plausible.
Write a critique listing each problem and how to fix it. Decide "accept" when the result is good
enough to create tasks from, otherwise "revise".`

const refinementPrompt = `You improve meeting minutes using a reviewer's critique.

Meeting metadata:
%s

Draft minutes:
%s

Draft action items:
%s

Critique:
%s

Transcript:
%s

Return the corrected summary and the full corrected list of action items.`

const emailTemplate = `Hello %s,

You have a task from the meeting "%s" (%s).

MEETING SUMMARY:
%s

YOUR TASK:

- %s`

package mcpserver

// FormatContract describes the two on-disk document formats that LLM
// consumers should follow when producing or editing vertext documents.
const FormatContract = `# Vertext Document Format Contract

A vertext document is a block of metadata followed by a plain-text body.
Two encodings exist; the file extension selects one.

## Frontmatter (.md and everything else)

` + "```" + `markdown
---
title: 春曉                         # REQUIRED on save
date: 2024-03-01T09:30:00Z          # REQUIRED on save, RFC 3339 or YYYY-MM-DD
categories: [唐詩, 五言絕句]        # OPTIONAL, flow-style list
summary: 孟浩然 春日詩              # OPTIONAL
slug: chun-xiao                     # OPTIONAL, lowercase kebab-case
description: 晨起所見               # OPTIONAL
id: 2024-0301-0930                  # OPTIONAL, YYYY-MMDD-HHMM
---
春眠不覺曉
處處聞啼鳥
` + "```" + `

## Tagged (.txt)

` + "```" + `text
[編號]=2024-0301-0930 | [標題]=春曉 | [日期]=2024-03-01 | [說明]=晨起所見
-----
春眠不覺曉
處處聞啼鳥
` + "```" + `

## Rules

1. The metadata block must be the first thing in the file. A frontmatter fence
   is ` + "`---`" + ` on its own line; the tagged header is one line of
   ` + "`[label]=value`" + ` pairs joined by ` + "` | `" + ` and closed by a line of ` + "`-----`" + `.
2. Tagged files only carry 編號 (id), 標題 (title), 日期 (date) and 說明
   (description). Categories, summary and slug are frontmatter only.
3. Tagged values never contain ` + "`|`" + ` or line breaks.
4. A file without a metadata block is still valid: the whole text is the body.
   Missing id, title and date are filled on open (generated id, file name,
   current time).
5. Line breaks in the body are ` + "`\\n`" + `. Encoding is UTF-8.
6. Word count is the number of Han characters plus the number of Latin
   letter or digit runs in the body. Metadata is never counted.
7. Unknown frontmatter keys are dropped when the document is saved.
`

package mcpserver

// KeywordContract describes how LLM consumers should write keywords and
// upload images so that prompt matching and gallery search work.
const KeywordContract = `# aishow Keyword Contract

aishow stores AI-generated images together with a flat vocabulary of
keywords. Keywords drive gallery search and are matched against prompts.

## Keywords

1. A keyword is a short phrase such as ` + "`" + `cat` + "`" + ` or ` + "`" + `golden hour` + "`" + `.
   Leading and trailing whitespace is removed. Blank keywords are rejected.
2. Keyword lists are **comma-separated**: ` + "`" + `cat, sunset, golden hour` + "`" + `.
   Duplicates inside one list are ignored; the first occurrence wins.
3. Keywords are stored with their original case and are unique as written.
   Adding an existing keyword is not an error.
4. Avoid commas inside a keyword; they always split the list.

## Prompt matching

` + "`" + `match_keywords` + "`" + ` splits the prompt on commas, lowercases every part and
reports each vocabulary keyword that occurs as a substring of a part. Results
keep prompt order and each keyword appears once. A blank prompt is an error.

## Images

- Upload with ` + "`" + `upload_image` + "`" + `. Supported formats: png, jpg, jpeg, gif, webp.
- The stored name is ` + "`" + `YYYYMMDD_HHMMSS_<original name>` + "`" + `; unsafe characters
  become underscores.
- ` + "`" + `type` + "`" + ` is free text and defaults to ` + "`" + `SD` + "`" + `. ComfyUI images use ` + "`" + `ComfyUI` + "`" + `.
- ` + "`" + `hidden` + "`" + ` images are excluded unless visibility is ` + "`" + `only_restricted` + "`" + ` or ` + "`" + `show_all` + "`" + `.
- Uploaded files are served at ` + "`" + `/uploads/<filename>` + "`" + `, thumbnails at ` + "`" + `/thumbnails/<filename>` + "`" + `.

## Example

` + "```" + `json
{
  "url": "data:image/png;base64,iVBORw0KGgo...",
  "filename": "harbor.png",
  "type": "ComfyUI",
  "keywords": "harbor, night, neon"
}
` + "```" + `
`

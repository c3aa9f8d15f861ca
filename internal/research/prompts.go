package research

// searchPhrasePrompt asks the model to distill an objective into the 1-2 word
// search parameter that the site map call accepts.
const searchPhrasePrompt = `The map function generates a list of URLs from a website and it accepts a search parameter. Based on the objective of: %s, come up with a 1-2 word search parameter that will help us find the information we need. Only respond with 1-2 words nothing else.`

const extractVendorsPrompt = `Given the following scraped content and objective, extract all vendor information in a simple and concise JSON format.
Each vendor should be a separate object in an array.
Include fields such as name, url, location, and description if available.

Objective: %s
Scraped content: %s

Remember:
1. Return JSON for all vendors found on the page.
2. Keep the JSON structure as simple and flat as possible for each vendor.
3. Do not include any explanations or markdown formatting in your response.`

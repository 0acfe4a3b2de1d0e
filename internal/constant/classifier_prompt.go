package constant

// ServiceIntentPrompt is the system prompt for the FBO service intent classifier.
const ServiceIntentPrompt = `Analyze the message to detect Service Intents for a generic FBO context.

Services: transport, refueling, catering, wine, reservation.

Use the provided CONTEXT to interpret the message.

If Speaker is PILOT:
- Detect if they are REQUESTING a service.
- "Landing", "Arrival", "Parking" -> "reservation" (search).
- Providing a tail number (e.g. "N12345") -> "reservation" (search).
- Providing a landing time (e.g. "5pm") -> "reservation" (search).
- "Fuel" -> "refueling" (search).
- "Car", "rental", "limo" -> "transport" (search).
- "Food", "Catering", "Sandwich", "Coffee", "Meal" -> "catering" (search).
- "Wine", "Alcohol", "Drink" -> "wine" (search).

EMERGENCY DETECTION (HIGHEST PRIORITY):
- If the PILOT mentions "engine failure", "emergency", "mayday", "fire", "fuel leak", "medical", "bird strike", "landing gear" or any safety-critical situation,
  return { "services": [{ "type": "urgent", "action": "finalize", "details": "<brief description of the emergency>" }] }
- If the AGENT says "escalating", "transferring to duty manager" or "emergency", return the same urgent object.
- URGENT overrides ALL other intents. If an emergency is detected, return ONLY the urgent service.

If Speaker is AGENT:
- Detect if they are CONFIRMING a service.
- "Booked arrival", "Confirmed landing", "Marked arrival" -> "reservation" (finalize).
- "Arranged car", "Confirmed rental", "Booked vehicle" -> "transport" (finalize).
- "Arranged fuel", "Confirmed refueling" -> "refueling" (finalize).
- "Arranged catering", "Confirmed food", "Meals" -> "catering" (finalize).
- "Arranged wine", "Confirmed drinks" -> "wine" (finalize).

RULES:
- If multiple services are mentioned, return multiple objects. "chicken sandwich and red wine" = catering + wine. Always return both.
- Do not mix details. "Arrival at 9am" -> reservation. "Toyota Camry" -> transport. "red wine" -> wine, never catering.
- Food items (catering) and wine or alcohol (wine) are different services. Never group wine under catering.
- A question about a service ("regarding the rental car") is NOT a finalize. Return search or nothing for that part. Confirmations must be explicit ("confirmed", "arranged", "placed", "booked").
- UPSELL: if the agent mentions a PAST order ("Last time you ordered...") or asks "Would you like to order the same?", return NO intent for the upsold services. Still return reservation finalize if the same message confirms the arrival.
  Example: "Confirmed. I have booked your arrival for 4 hours. Last time you ordered a chicken sandwich and red wine. Would you like to order the same again?"
  => [{"type":"reservation","action":"finalize","details":"arrival booked for 4 hours"}]
- DECLINE: if the PILOT says "No", "I don't want", "No thanks" or declines a service, return action "cancel" for that service type.
- Action "finalize" is only for explicit confirmations of current requests.

Return JSON: { "services": [ { "type": "transport", "action": "search"|"finalize"|"cancel", "details": "optional summary" } ] }
If there is no clear intent, return { "services": [] }.`

// ServiceIntentUserTemplate wraps the recent context and the message being analyzed.
const ServiceIntentUserTemplate = `Context:
%s

Current Message to Analyze:
Speaker: %s
Message: "%s"`
